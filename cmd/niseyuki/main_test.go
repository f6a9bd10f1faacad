// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZSC714725/niseyuki/internal/encoder"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
)

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// isolate keeps the host's ffmpeg and environment out of the command.
func isolate(t *testing.T) {
	t.Setenv(ffmpeg.EnvFFmpeg, "")
	t.Setenv(ffmpeg.EnvFFprobe, "")
	t.Setenv("NISEYUKI_ENGINE_APP_DIR", t.TempDir())
	t.Setenv("NISEYUKI_ENGINE_FFMPEG_NAME", "niseyuki-missing-engine")
	t.Setenv("NISEYUKI_ENGINE_FFPROBE_NAME", "niseyuki-missing-probe")
	t.Setenv("NISEYUKI_LOG_LEVEL", "error")
}

const jobYAML = `video_path: /media/in/show.mkv
subtitle_path: /media/in/show.ass
video:
  encoder: x265
  quality: 24
cut:
  enabled: true
  start: "10"
  end: "25"
`

func TestArgsCommand(t *testing.T) {
	isolate(t)
	path := writeJob(t, jobYAML)

	out, _, err := execute(t, "args", path, "--output", "/media/out/show.mkv")
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(out)
	if !strings.HasPrefix(line, "niseyuki-missing-engine -hide_banner -y") {
		t.Fatalf("command = %q", line)
	}
	for _, want := range []string{"-ss 10", "-t 15.00", "-c:v libx265", "-crf 24.0", "subtitles="} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "/media/out/show.mkv") {
		t.Fatalf("command = %q", line)
	}
}

func TestArgsJSON(t *testing.T) {
	isolate(t)
	path := writeJob(t, jobYAML+"intro_outro:\n  intro_path: /media/intro.mkv\n")

	out, _, err := execute(t, "args", path, "--json", "--output-folder", "/media/out", "--telegram")
	if err != nil {
		t.Fatal(err)
	}

	var resp struct {
		Args     []string `json:"args"`
		Output   string   `json:"output"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Output != filepath.Join("/media/out", "show.mp4") {
		t.Fatalf("output = %q", resp.Output)
	}
	if len(resp.Warnings) != 1 || !strings.HasPrefix(resp.Warnings[0], "Intro/outro") {
		t.Fatalf("warnings = %q", resp.Warnings)
	}
}

func TestArgsTable(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "args", writeJob(t, jobYAML), "--table")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ARGUMENT") || !strings.Contains(out, "-hide_banner") {
		t.Fatalf("table = %q", out)
	}
}

func TestArgsMissingSource(t *testing.T) {
	isolate(t)
	if _, _, err := execute(t, "args", writeJob(t, "video_path: \"\"\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodeWithoutEngine(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	body := "video_path: " + filepath.Join(dir, "in.mkv") + "\nduration_ms: 1000\n"

	out, _, err := execute(t, "encode", writeJob(t, body), "--output", filepath.Join(dir, "out.mkv"))
	if !errors.Is(err, errEncodeFailed) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, encoder.WarnPrefix+"Unable to locate ffmpeg") {
		t.Fatalf("output = %q", out)
	}
}

func TestProgressLine(t *testing.T) {
	cases := []struct {
		progress float64
		want     string
	}{
		{0, "[------------------------------]   0.0% Indexing"},
		{0.5, "[###############---------------]  50.0% Indexing"},
		{1.5, "[##############################] 100.0% Indexing"},
	}
	for _, tc := range cases {
		if got := progressLine(tc.progress, "Indexing"); got != tc.want {
			t.Errorf("progressLine(%v) = %q, want %q", tc.progress, got, tc.want)
		}
	}
}

func TestRendererPlain(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressRenderer(&buf, false)
	if r.live {
		t.Fatal("buffer treated as terminal")
	}

	r.handle(encoder.Event{Type: encoder.EventProgress, Progress: 0.25})
	r.handle(encoder.Event{Type: encoder.EventStatus, Status: "Encoding (00:00:05)"})
	r.handle(encoder.Event{Type: encoder.EventMessage, Level: encoder.LevelInfo, Message: "Stream mapping:"})
	r.handle(encoder.Event{Type: encoder.EventMessage, Level: encoder.LevelWarn, Message: "[warn] no probe"})
	r.handle(encoder.Event{Type: encoder.EventFinished, Success: true})

	want := " 25.0% Encoding (00:00:05)\n[warn] no probe\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}
