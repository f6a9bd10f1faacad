// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Bind != ":8080" {
		t.Errorf("bind = %q", cfg.Server.Bind)
	}
	if cfg.Engine.FFmpegName != "ffmpeg" || cfg.Engine.FFprobeName != "ffprobe" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Timeouts.Start != 5*time.Second || cfg.Timeouts.Probe != 8*time.Second || cfg.Timeouts.Stop != 2*time.Second {
		t.Errorf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Events.History != 1024 || cfg.Report.Lines != 100 {
		t.Errorf("history = %d, lines = %d", cfg.Events.History, cfg.Report.Lines)
	}
	if cfg.Log.Level != "info" || cfg.Notify.Retries != 3 {
		t.Errorf("log = %+v, notify = %+v", cfg.Log, cfg.Notify)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Bind != ":8080" {
		t.Fatalf("bind = %q", cfg.Server.Bind)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niseyuki.yaml")
	data := `server:
  bind: "127.0.0.1:9000"
engine:
  app_dir: /opt/niseyuki
timeouts:
  stop: 3s
  probe: 0s
input:
  allow:
    - ^/media/
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Bind != "127.0.0.1:9000" || cfg.Engine.AppDir != "/opt/niseyuki" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Timeouts.Stop != 3*time.Second {
		t.Errorf("stop = %s", cfg.Timeouts.Stop)
	}
	if cfg.Timeouts.Probe != 8*time.Second {
		t.Errorf("zero probe timeout not defaulted: %s", cfg.Timeouts.Probe)
	}
	if len(cfg.Input.Allow) != 1 || cfg.Input.Allow[0] != "^/media/" {
		t.Errorf("allow = %v", cfg.Input.Allow)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("NISEYUKI_SERVER_BIND", ":7000")
	t.Setenv("NISEYUKI_TIMEOUTS_START", "1500ms")
	t.Setenv("NISEYUKI_NOTIFY_WEBHOOK_URL", "http://hooks.local/done")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Bind != ":7000" {
		t.Errorf("bind = %q", cfg.Server.Bind)
	}
	if cfg.Timeouts.Start != 1500*time.Millisecond {
		t.Errorf("start = %s", cfg.Timeouts.Start)
	}
	if cfg.Notify.WebhookURL != "http://hooks.local/done" {
		t.Errorf("webhook = %q", cfg.Notify.WebhookURL)
	}
}
