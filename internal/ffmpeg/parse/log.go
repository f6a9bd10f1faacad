// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package parse

import (
	"container/ring"
	"sync"
	"time"
)

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time `json:"ts"`
	Data      string    `json:"data"`
}

// Log keeps the most recent engine output lines.
type Log struct {
	lines int
	log   *ring.Ring
	lock  sync.RWMutex
}

// NewLog creates a log holding up to lines entries (100 if not positive).
func NewLog(lines int) *Log {
	if lines <= 0 {
		lines = 100
	}
	return &Log{lines: lines, log: ring.New(lines)}
}

// Add appends one line, dropping the oldest when full.
func (l *Log) Add(data string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.log.Value = Line{Timestamp: time.Now(), Data: data}
	l.log = l.log.Next()
}

// Reset drops all lines.
func (l *Log) Reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.log = ring.New(l.lines)
}

// Lines returns the kept lines, oldest first.
func (l *Log) Lines() []Line {
	var out []Line
	l.lock.RLock()
	l.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	l.lock.RUnlock()
	return out
}
