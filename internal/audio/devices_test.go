// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeInfos = []*portaudio.DeviceInfo{
	{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000,
		DefaultLowInputLatency: 3 * time.Millisecond, DefaultHighInputLatency: 12 * time.Millisecond},
	{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100},
}

// withFakeDevices replaces the PortAudio device query for one test.
func withFakeDevices(t *testing.T, infos []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paLibDevicesFunc
	origDefault := paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc = orig
		paLibDefaultInputDeviceFunc = origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, err }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if len(infos) == 0 {
			return nil, fmt.Errorf("no default input device")
		}
		return infos[0], nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeInfos) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeInfos))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeInfos[i].Name {
			t.Errorf("Device %d name = %q, want %q", i, d.Name, fakeInfos[i].Name)
		}
	}
	if devices[0].LowInputLatency != 3*time.Millisecond {
		t.Errorf("low latency = %v, want 3ms", devices[0].LowInputLatency)
	}
}

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{1, 0, "Input"},
		{0, 2, "Output"},
		{2, 2, "Input/Output"},
		{0, 0, "None"},
	}
	for _, tt := range tests {
		d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
		if got := d.Kind(); got != tt.want {
			t.Errorf("Kind(%d in, %d out) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withFakeDevices(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	dev, err := InputDevice(-1)
	if err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("InputDevice(-1) = %v, %v; want the default microphone", dev, err)
	}

	dev, err = InputDevice(2)
	if err != nil {
		t.Fatalf("InputDevice(2) error: %v", err)
	}
	if dev.Name != "USB Interface" {
		t.Errorf("InputDevice(2) = %q", dev.Name)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeInfos) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeDevices(t, nil, nil)

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "no default input device") {
		t.Errorf("expected default device error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	withFakeDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"[2] USB Interface (Input/Output)",
		"Latency: Low=3.00ms, High=12.00ms",
		"8192 Hz",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Latency:") != 2 {
		t.Errorf("latency should only be listed for input devices:\n%s", out)
	}
}
