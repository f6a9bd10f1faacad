// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package skills detects what an ffmpeg build can do.

package skills

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Encoder is one entry of `ffmpeg -encoders`.
type Encoder struct {
	Id   string
	Kind string // video, audio or subtitle
	Name string
}

// Filter is one entry of `ffmpeg -filters`.
type Filter struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Build describes the ffmpeg binary itself.
type Build struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of FFmpeg
type Skills struct {
	FFmpeg   Build
	Encoders []Encoder
	Filters  []Filter
	HWAccels []string
}

// HasEncoder reports whether id (e.g. h264_nvenc) is compiled in.
func (s Skills) HasEncoder(id string) bool {
	for _, e := range s.Encoders {
		if e.Id == id {
			return true
		}
	}
	return false
}

// HasFilter reports whether the filter id is available.
func (s Skills) HasFilter(id string) bool {
	for _, f := range s.Filters {
		if f.Id == id {
			return true
		}
	}
	return false
}

// New runs binary to collect its skills.
func New(ctx context.Context, binary string) (Skills, error) {
	s := Skills{}

	out, err := run(ctx, binary, "-version")
	if err != nil {
		return Skills{}, fmt.Errorf("can't run ffmpeg: %w", err)
	}
	s.FFmpeg = parseVersion(out)
	if s.FFmpeg.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}

	if out, err := run(ctx, binary, "-hide_banner", "-encoders"); err == nil {
		s.Encoders = parseEncoders(out)
	}
	if out, err := run(ctx, binary, "-hide_banner", "-filters"); err == nil {
		s.Filters = parseFilters(out)
	}
	if out, err := run(ctx, binary, "-hide_banner", "-hwaccels"); err == nil {
		s.HWAccels = parseHWAccels(out)
	}
	return s, nil
}

func run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = []string{}
	return cmd.Output()
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reEncoder       = regexp.MustCompile(`^\s([VAS])[F.][S.][X.][B.][D.] ([0-9A-Za-z_-]+)\s+(.*)$`)
	reFilter        = regexp.MustCompile(`^\s[TSC.]{3} ([0-9A-Za-z_]+)\s+(?:\S+)\s+(.*)$`)
	reHWAccel       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func parseVersion(data []byte) Build {
	b := Build{}
	if m := reVersion.FindSubmatch(data); m != nil {
		b.Version = string(m[1])
		if len(m[2]) == 0 {
			b.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		b.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		b.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		b.Libraries = append(b.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return b
}

func parseEncoders(data []byte) []Encoder {
	var encoders []Encoder
	kinds := map[string]string{"V": "video", "A": "audio", "S": "subtitle"}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reEncoder.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		encoders = append(encoders, Encoder{Id: m[2], Kind: kinds[m[1]], Name: strings.TrimSpace(m[3])})
	}
	return encoders
}

func parseFilters(data []byte) []Filter {
	var filters []Filter
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := reFilter.FindStringSubmatch(scanner.Text()); m != nil {
			filters = append(filters, Filter{Id: m[1], Name: strings.TrimSpace(m[2])})
		}
	}
	return filters
}

func parseHWAccels(data []byte) []string {
	var accels []string
	start := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Hardware acceleration methods:" {
			start = true
			continue
		}
		if !start || !reHWAccel.MatchString(line) {
			continue
		}
		accels = append(accels, line)
	}
	return accels
}
