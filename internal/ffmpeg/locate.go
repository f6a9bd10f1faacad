// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package ffmpeg

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment overrides for the two executables.
const (
	EnvFFmpeg  = "NISEYUKI_FFMPEG"
	EnvFFprobe = "NISEYUKI_FFPROBE"
)

// ErrNotFound is returned when no candidate location holds the executable.
var ErrNotFound = errors.New("executable not found")

// Locator finds the engine and its probing companion.
type Locator struct {
	// AppDir is where bundled copies are looked up. Empty means the
	// directory of the running executable.
	AppDir      string
	FFmpegName  string
	FFprobeName string
}

// DefaultLocator looks for ffmpeg and ffprobe next to the running program.
func DefaultLocator() Locator {
	return Locator{FFmpegName: "ffmpeg", FFprobeName: "ffprobe"}
}

// FFmpeg resolves the engine.
func (l Locator) FFmpeg() (string, error) {
	return Locate(orDefault(l.FFmpegName, "ffmpeg"), EnvFFmpeg, l.appDir())
}

// FFprobe resolves the probing tool.
func (l Locator) FFprobe() (string, error) {
	return Locate(orDefault(l.FFprobeName, "ffprobe"), EnvFFprobe, l.appDir())
}

func (l Locator) appDir() string {
	if l.AppDir != "" {
		return l.AppDir
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// Locate resolves program to an absolute path of an existing regular file.
// Order: the envVar override, the bundled ffmpeg/bin and ffmpeg folders and
// appDir itself, then the executable search path.
func Locate(program, envVar, appDir string) (string, error) {
	if envVar != "" {
		if p, ok := regularFile(os.Getenv(envVar)); ok {
			return p, nil
		}
	}

	name := program
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}

	if appDir != "" {
		candidates := []string{
			filepath.Join(appDir, "ffmpeg", "bin", name),
			filepath.Join(appDir, "ffmpeg", name),
			filepath.Join(appDir, name),
		}
		for _, c := range candidates {
			if p, ok := regularFile(c); ok {
				return p, nil
			}
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		if abs, ok := regularFile(p); ok {
			return abs, nil
		}
	}
	return "", ErrNotFound
}

func regularFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
