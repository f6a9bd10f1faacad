// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package parse classifies ffmpeg output lines into progress records.

package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
)

// OutTimeUnitsPerMs converts out_time_ms / out_time_us values to
// milliseconds. ffmpeg reports both keys in microseconds.
const OutTimeUnitsPerMs = 1000

// Dialect is the textual form a record was read from.
type Dialect int

const (
	DialectNone Dialect = iota
	// DialectStructured is one key=value pair per line (-progress).
	DialectStructured
	// DialectFreeText is the human stats line (frame=... time=... speed=...).
	DialectFreeText
)

// Record is what one output line says about progress.
type Record struct {
	Dialect Dialect
	// Handled is false for lines that carry no progress and should be
	// forwarded as messages.
	Handled bool

	HasTime bool
	TimeMs  int64

	HasFrame bool
	Frame    uint64

	HasSpeed bool
	Speed    string

	End bool
}

// Encoding reports whether the record proves the engine is producing output.
func (r Record) Encoding() bool {
	return r.HasTime || r.HasFrame
}

var (
	// values may be width-padded after the "=", e.g. "speed=   1x"
	reKeyValue = regexp.MustCompile(`^([A-Za-z0-9_]+)=\s*(\S*)$`)
	reFrame    = regexp.MustCompile(`frame=\s*([0-9]+)`)
	reTime     = regexp.MustCompile(`time=\s*([0-9:.]+)`)
	reStreamQ  = regexp.MustCompile(`^stream_[0-9]+_[0-9]+_q$`)
)

// progress keys that carry nothing the supervisor tracks
var quietKeys = map[string]struct{}{
	"fps":         {},
	"bitrate":     {},
	"total_size":  {},
	"dup_frames":  {},
	"drop_frames": {},
}

// Classify reads one line. Structured key=value lines are tried first; the
// free-text pattern search runs only when the line is not of that shape.
func Classify(line string) Record {
	text := strings.TrimSpace(line)
	if text == "" {
		return Record{Handled: true}
	}

	if m := reKeyValue.FindStringSubmatch(text); m != nil {
		return classifyKeyValue(m[1], m[2])
	}
	return classifyFreeText(text)
}

func classifyKeyValue(key, value string) Record {
	r := Record{Dialect: DialectStructured, Handled: true}

	switch key {
	case "out_time_ms", "out_time_us":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			r.HasTime = true
			r.TimeMs = v / OutTimeUnitsPerMs
		}
	case "out_time":
		if seconds, ok := ffmpeg.ParseTime(value); ok {
			r.HasTime = true
			r.TimeMs = int64(seconds * 1000)
		}
	case "progress":
		r.End = value == "end"
	case "frame":
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			r.HasFrame = true
			r.Frame = v
		}
	case "speed":
		if value != "" {
			r.HasSpeed = true
			r.Speed = value
		}
	default:
		if _, ok := quietKeys[key]; !ok && !reStreamQ.MatchString(key) {
			r.Handled = false
		}
	}
	return r
}

func classifyFreeText(text string) Record {
	r := Record{Dialect: DialectFreeText}

	if m := reTime.FindStringSubmatch(text); m != nil {
		if seconds, ok := ffmpeg.ParseTime(m[1]); ok {
			r.HasTime = true
			r.TimeMs = int64(seconds * 1000)
		}
	}
	if m := reFrame.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			r.HasFrame = true
			r.Frame = v
		}
	}

	r.Handled = r.Encoding()
	if !r.Handled {
		r.Dialect = DialectNone
	}
	return r
}
