// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kortschak/hrv/heart"
	"github.com/kortschak/hrv/stream"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device:
  address: "a0:9e:1a:00:00:01"
  scanTimeout: 10s
  mode: Notify
  queueSize: 4
gate:
  warmup: 10s
  cooldown: 2s
remoteWrite:
  url: "https://prometheus.example.com/api/prom/push"
  username: "123456"
  password: "secret"
  pushInterval: 30s
logging:
  logFormat: "LOGFMT"
  logLevel: "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Device.Address != "A0:9E:1A:00:00:01" {
		t.Errorf("unexpected address: %s", cfg.Device.Address)
	}
	if cfg.Device.Name != "MYZONE" {
		t.Errorf("unexpected default name: %s", cfg.Device.Name)
	}
	if cfg.Device.ScanTimeout != 10*time.Second {
		t.Errorf("unexpected scan timeout: %v", cfg.Device.ScanTimeout)
	}
	if cfg.Device.Mode != ModeNotify {
		t.Errorf("unexpected mode: %s", cfg.Device.Mode)
	}
	if cfg.Device.QueueSize != 4 {
		t.Errorf("unexpected queue size: %d", cfg.Device.QueueSize)
	}
	if cfg.RemoteWrite.PushInterval != 30*time.Second {
		t.Errorf("unexpected push interval: %v", cfg.RemoteWrite.PushInterval)
	}
	if cfg.RemoteWrite.BufferSize != 1000 {
		t.Errorf("unexpected default buffer size: %d", cfg.RemoteWrite.BufferSize)
	}
	if cfg.Logging.Format != "logfmt" {
		t.Errorf("unexpected log format: %s", cfg.Logging.Format)
	}

	got := cfg.Session()
	want := stream.Gate{Warmup: 10 * time.Second, Cooldown: 2 * time.Second}
	if got.Gate == nil || *got.Gate != want {
		t.Errorf("unexpected gate: got:%+v want:%+v", got.Gate, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Device.Mode != ModePoll {
		t.Errorf("unexpected mode: %s", cfg.Device.Mode)
	}
	if cfg.Device.PollInterval != 0 {
		t.Errorf("unexpected poll interval: %v", cfg.Device.PollInterval)
	}
	if cfg.Gate.Periods() != stream.DefaultGate {
		t.Errorf("unexpected gate: %+v", cfg.Gate.Periods())
	}
	if cfg.RemoteWrite.URL != "" {
		t.Errorf("expected remote write disabled, got url %q", cfg.RemoteWrite.URL)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HRV_DEVICE_NAME", "Polar H10")
	t.Setenv("HRV_WARMUP", "7s")
	path := writeConfig(t, `
logging:
  logFormat: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Device.Name != "Polar H10" {
		t.Errorf("unexpected name: %s", cfg.Device.Name)
	}
	if cfg.Gate.Periods().Warmup != 7*time.Second {
		t.Errorf("unexpected warmup: %v", cfg.Gate.Periods().Warmup)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	logger.Sync()
}

func TestZeroGate(t *testing.T) {
	beat := heart.Sample{BPM: 60, RR: []uint16{1000}}
	for _, test := range []struct {
		name    string
		env     map[string]string
		content string
	}{
		{
			name: "env",
			env:  map[string]string{"HRV_WARMUP": "0s", "HRV_COOLDOWN": "0s"},
		},
		{
			name:    "file",
			content: "gate:\n  warmup: 0s\n  cooldown: 0s\n",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if test.content != "" {
				path = writeConfig(t, test.content)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := cfg.Session().Gate
			if got == nil || *got != (stream.Gate{}) {
				t.Fatalf("unexpected gate: got:%+v want:%+v", got, stream.Gate{})
			}
			start := time.Now()
			st := stream.New(start, *got)
			if v := st.Accept(beat, start.Add(time.Second)); v != stream.Accepted {
				t.Errorf("unexpected verdict: got:%v want:%v", v, stream.Accepted)
			}
		})
	}
}

var invalidTests = []struct {
	name    string
	content string
	want    string
}{
	{
		name:    "bad_address",
		content: "device:\n  address: \"not-a-mac\"\n",
		want:    "invalid device address",
	},
	{
		name:    "bad_mode",
		content: "device:\n  mode: scan\n",
		want:    "mode must be",
	},
	{
		name:    "negative_gate",
		content: "gate:\n  warmup: -1s\n",
		want:    "gate periods",
	},
	{
		name:    "bad_gate",
		content: "gate:\n  cooldown: soon\n",
		want:    "invalid cooldown period",
	},
	{
		name:    "short_push_interval",
		content: "remoteWrite:\n  url: \"http://localhost:9090/api/v1/write\"\n  pushInterval: 10ms\n",
		want:    "push interval",
	},
	{
		name:    "bad_log_format",
		content: "logging:\n  logFormat: xml\n",
		want:    "logFormat",
	},
	{
		name:    "bad_log_level",
		content: "logging:\n  logLevel: verbose\n",
		want:    "logLevel",
	},
}

func TestLoadInvalid(t *testing.T) {
	for _, test := range invalidTests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("unexpected error: got:%v want substring:%q", err, test.want)
			}
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"console", "json", "logfmt"} {
		cfg := Config{Logging: LoggingConfig{Format: format, Level: "warn"}}
		logger, err := cfg.NewLogger()
		if err != nil {
			t.Errorf("failed to build %s logger: %v", format, err)
			continue
		}
		if logger.Core().Enabled(-1) {
			t.Errorf("%s logger enabled at debug level", format)
		}
	}
}
