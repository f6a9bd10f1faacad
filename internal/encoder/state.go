// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package encoder

// State of the supervisor lifecycle. Idle is both initial and terminal.
type State string

const (
	StateIdle     State = "idle"
	StateIndexing State = "indexing"
	StateEncoding State = "encoding"
	StateStopping State = "stopping"
)

func (s State) String() string { return string(s) }

// Busy reports whether a run is in flight.
func (s State) Busy() bool { return s != StateIdle }

// Status strings shown to observers.
const (
	StatusIndexing  = "Indexing"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// WarnPrefix marks warning messages.
const WarnPrefix = "[warn] "
