package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// fakeSpeaker answers the handful of IP Control reads a poll needs.
// Everything else is a 404, which the client tolerates for optional data.
type fakeSpeaker struct {
	server   *httptest.Server
	requests atomic.Int64
}

func newFakeSpeaker(t *testing.T) *fakeSpeaker {
	t.Helper()
	routes := map[string]string{
		"/ipcontrol/v1/devices/current": `{"deviceId":"dev-1","deviceName":"Lounge","model":"Phantom I","serial":"SN123","release":{"canonicalVersion":"2.16.1"}}`,
		"/ipcontrol/v1/systems/current": `{"systemId":"sys-1","availableFeatures":["nightMode"]}`,
		"/ipcontrol/v1/systems/current/sources/current/soundControl/volume": `{"volume":42}`,
	}

	f := &fakeSpeaker{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":"NotFound","message":"no such path"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpeaker) host() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

// writeConfig writes a config with every outward surface disabled.
func writeConfig(t *testing.T, deviceIP string) string {
	t.Helper()
	content := `
site:
  id: test-site
device:
  id: lounge
  ip: "` + deviceIP + `"
  poll_interval: 5
  request_timeout: 2
mqtt:
  enabled: false
api:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDeviceIP(t *testing.T) {
	path := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil {
		t.Fatal("run() should fail without a device IP")
	}
	if !strings.Contains(err.Error(), "device.ip") {
		t.Errorf("error = %v, want mention of device.ip", err)
	}
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	speaker := newFakeSpeaker(t)
	path := writeConfig(t, speaker.host())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if speaker.requests.Load() == 0 {
		t.Error("run() should poll the device at least once")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DEVIALET_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("DEVIALET_CONFIG", expected)

	if got := getConfigPath(); got != expected {
		t.Errorf("getConfigPath() = %q, want %q", got, expected)
	}
}

func TestStatusCommand(t *testing.T) {
	speaker := newFakeSpeaker(t)
	path := writeConfig(t, speaker.host())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--config", path})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("status error = %v", err)
	}

	var report statusReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, out.String())
	}
	if report.Info.Model != "Phantom I" || report.Info.FirmwareVersion != "2.16.1" {
		t.Errorf("info = %+v", report.Info)
	}
	if report.State.Volume != 42 {
		t.Errorf("state volume = %d, want 42", report.State.Volume)
	}
}

func TestStatusCommand_Unreachable(t *testing.T) {
	speaker := newFakeSpeaker(t)
	host := speaker.host()
	speaker.server.Close()
	path := writeConfig(t, host)

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"status", "--config", path})

	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("status should fail when the speaker is unreachable")
	}
	if !errors.Is(err, devialet.ErrConnection) {
		t.Errorf("error = %v, want a connection error", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out.String(), "devialetbridge "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestStateSample(t *testing.T) {
	night := true
	now := time.Now()
	s := stateSample("lounge", devialet.DeviceState{
		Volume:        30,
		Muted:         true,
		PlaybackState: devialet.PlaybackPlaying,
		CurrentSource: "optical",
		EqPreset:      devialet.EqCustom,
		EqLow:         -3,
		EqHigh:        2.5,
		NightMode:     &night,
		UpdatedAt:     now,
	})

	if s.DeviceID != "lounge" || s.Volume != 30 || !s.Muted {
		t.Errorf("sample = %+v", s)
	}
	if s.PlaybackState != "playing" || s.Source != "optical" || s.EqPreset != "custom" {
		t.Errorf("sample labels = %+v", s)
	}
	if s.EqLow != -3 || s.EqHigh != 2.5 {
		t.Errorf("gains = %v/%v", s.EqLow, s.EqHigh)
	}
	if s.NightMode == nil || !*s.NightMode {
		t.Error("night mode should carry through")
	}
	if !s.Time.Equal(now) {
		t.Errorf("time = %v, want %v", s.Time, now)
	}
}
