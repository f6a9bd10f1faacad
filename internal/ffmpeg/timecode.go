// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTime reads a bare number of seconds or a colon separated token such
// as 1:02:03.5, rightmost part being seconds.
func ParseTime(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}

	if v, ok := parseFinite(trimmed); ok {
		return v, true
	}

	parts := strings.Split(trimmed, ":")
	multiplier := 1.0
	total := 0.0
	for i := len(parts) - 1; i >= 0; i-- {
		v, ok := parseFinite(strings.TrimSpace(parts[i]))
		if !ok {
			return 0, false
		}
		total += v * multiplier
		multiplier *= 60
	}
	return total, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatTimecode renders ms as HH:MM:SS. Hours keep counting past 24.
func FormatTimecode(ms int64) string {
	if ms <= 0 {
		return "00:00:00"
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatSeconds prints seconds with 2 decimals from 10s upward, 3 below.
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= 10 {
		return strconv.FormatFloat(seconds, 'f', 2, 64)
	}
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
