// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a duration probe.
const DefaultProbeTimeout = 8 * time.Second

// ErrProbeTimeout is returned when the probe had to be killed.
var ErrProbeTimeout = errors.New("ffprobe timed out while reading duration")

// ProbeDuration asks ffprobe for the container duration of source and
// returns it in milliseconds. Unknown or unparsable durations are 0 with a
// nil error; only a timeout is reported.
func ProbeDuration(ctx context.Context, ffprobe, source string, timeout time.Duration) (int64, error) {
	if ffprobe == "" {
		return 0, nil
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	cmd.WaitDelay = time.Second

	out, _ := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, ErrProbeTimeout
	}
	return parseDurationMs(string(out)), nil
}

func parseDurationMs(output string) int64 {
	seconds, ok := parseFinite(strings.TrimSpace(output))
	if !ok || seconds <= 0 {
		return 0
	}
	return int64(seconds * 1000)
}
