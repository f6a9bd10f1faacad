// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ZSC714725/niseyuki/internal/encoder"
)

const barWidth = 30

// progressRenderer prints supervisor events. On a terminal progress and
// status share one redrawn line; otherwise every change is its own line.
type progressRenderer struct {
	out      io.Writer
	live     bool
	verbose  bool
	progress float64
	status   string
	drawn    bool
}

func newProgressRenderer(out io.Writer, verbose bool) *progressRenderer {
	return &progressRenderer{out: out, live: isTerminal(out), verbose: verbose}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *progressRenderer) handle(e encoder.Event) {
	switch e.Type {
	case encoder.EventProgress:
		r.progress = e.Progress
		if r.live {
			r.redraw()
		}
	case encoder.EventStatus:
		r.status = e.Status
		if r.live {
			r.redraw()
		} else {
			r.println(fmt.Sprintf("%5.1f%% %s", r.progress*100, e.Status))
		}
	case encoder.EventMessage:
		if e.Level == encoder.LevelWarn || r.verbose || strings.HasPrefix(e.Message, "Starting ffmpeg") {
			r.println(e.Message)
		}
	case encoder.EventState:
		if r.verbose {
			r.println("state: " + string(e.State))
		}
	case encoder.EventFinished:
		if r.live && r.drawn {
			fmt.Fprintln(r.out)
			r.drawn = false
		}
	}
}

func (r *progressRenderer) println(line string) {
	if r.live && r.drawn {
		fmt.Fprint(r.out, "\r\033[K")
		r.drawn = false
	}
	fmt.Fprintln(r.out, line)
	if r.live {
		r.redraw()
	}
}

func (r *progressRenderer) redraw() {
	fmt.Fprint(r.out, "\r\033[K"+progressLine(r.progress, r.status))
	r.drawn = true
}

func progressLine(progress float64, status string) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	return fmt.Sprintf("[%s] %5.1f%% %s", bar, progress*100, status)
}
