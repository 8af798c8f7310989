// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"runtime/debug"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = info

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	info = origInfo
	readBuildInfo = debug.ReadBuildInfo

	os.Exit(exitCode)
}

func noBuildInfo() (*debug.BuildInfo, bool) { return nil, false }

func TestInitialize(t *testing.T) {
	readBuildInfo = noBuildInfo
	t.Cleanup(func() { readBuildInfo = debug.ReadBuildInfo })

	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{
			"Missing BuildName uses default",
			"",
			"2025-04-13",
			"abcdef123",
			"v1.0.0",
			"",
		},
		{
			"Missing BuildTime",
			"testapp",
			"",
			"abcdef123",
			"v1.0.0",
			"build time is unknown",
		},
		{
			"Missing BuildCommit",
			"testapp",
			"2025-04-13",
			"",
			"v1.0.0",
			"build commit is unknown",
		},
		{
			"Missing BuildVersion",
			"testapp",
			"2025-04-13",
			"abcdef123",
			"",
			"build version is unknown",
		},
		{
			"Success Case",
			"testapp",
			"2025-04-13",
			"abcdef123",
			"v1.0.0",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if got := GetBuildFlags().Name; got == "" {
					t.Errorf("info must stay usable after an error, got empty name")
				}
				return
			}

			if err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
				return
			}

			got := GetBuildFlags()
			wantName := tt.buildName
			if wantName == "" {
				wantName = "formant"
			}
			if got.Name != wantName {
				t.Errorf("Name = %v, want %v", got.Name, wantName)
			}
			if got.Time != tt.buildTime || got.Commit != tt.buildCommit || got.Version != tt.buildVer {
				t.Errorf("GetBuildFlags() = %+v", got)
			}
		})
	}
}

func TestInitializeFallsBackToVCSStamp(t *testing.T) {
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
		}, true
	}
	t.Cleanup(func() { readBuildInfo = debug.ReadBuildInfo })
	buildName, buildTime, buildCommit, buildVersion = "", "", "", "v0.2.0"

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}
	got := GetBuildFlags()
	if got.Commit != "0123456789abcdef" || got.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("VCS stamp not used: %+v", got)
	}

	buildVersion = ""
	err := Initialize()
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("a (devel) module version must not count as a version, got %v", err)
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Name: "formant", Version: "v1.0.0", Commit: "abcdef123", Time: "2025-04-13"}
	if got, want := i.String(), "formant v1.0.0 (abcdef1, built 2025-04-13)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
