// SPDX-License-Identifier: MIT
//
// Package build carries version metadata embedded at link time:
//
//	go build -ldflags "-X formant/pkg/build.buildVersion=v0.3.0 -X formant/pkg/build.buildCommit=$(git rev-parse HEAD) ..."
//
// Development builds without ldflags fall back to the VCS stamp the Go
// toolchain records, then to "unknown".
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for --version output and the startup log.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, commit, i.Time)
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	readBuildInfo = debug.ReadBuildInfo
)

const unknown = "unknown"

func defaults() Info {
	return Info{
		Name:        "formant",
		Description: "Touch-triggered formant detector over a live 512-point spectrum",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
}

var info = defaults()

// Initialize copies the ldflags values into the build info and fills gaps
// from the toolchain's VCS stamp. The returned error lists fields that are
// still unknown; the info is usable either way.
func Initialize() error {
	info = defaults()
	if buildName != "" {
		info.Name = buildName
	}
	info.Time = firstSet(buildTime)
	info.Commit = firstSet(buildCommit)
	info.Version = firstSet(buildVersion)

	if bi, ok := readBuildInfo(); ok {
		if info.Version == unknown && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == unknown {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Time == unknown {
					info.Time = s.Value
				}
			}
		}
	}

	var errs []error
	if info.Time == unknown {
		errs = append(errs, errors.New("build time is unknown"))
	}
	if info.Commit == unknown {
		errs = append(errs, errors.New("build commit is unknown"))
	}
	if info.Version == unknown {
		errs = append(errs, errors.New("build version is unknown"))
	}
	return errors.Join(errs...)
}

func firstSet(v string) string {
	if v == "" {
		return unknown
	}
	return v
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() Info {
	return info
}
