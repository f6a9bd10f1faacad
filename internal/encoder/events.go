// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package encoder

import (
	"context"
	"sync"
	"time"
)

// EventType classifies supervisor notifications.
type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventMessage  EventType = "message"
	EventFinished EventType = "finished"
)

// Level of a message event.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Event is one sequenced notification. Which fields are set depends on Type.
type Event struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id,omitempty"`
	Type      EventType `json:"type"`
	State     State     `json:"state,omitempty"`
	Progress  float64   `json:"progress"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Level     Level     `json:"level,omitempty"`
	Success   bool      `json:"success"`
}

// EventBus keeps a bounded history of events and wakes subscribers on publish.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   uint64
	maxEvents int
	events    []Event
	wake      chan struct{}
}

// NewEventBus creates a bus holding up to maxEvents (1024 if not positive).
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		wake:      make(chan struct{}),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	close(b.wake)
	b.wake = make(chan struct{})
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq uint64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.since(seq)
}

func (b *EventBus) since(seq uint64) []Event {
	if len(b.events) == 0 || b.events[len(b.events)-1].Seq <= seq {
		return nil
	}
	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq is the sequence of the newest event, 0 if none.
func (b *EventBus) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Subscribe delivers every event after since, in order, until ctx is done.
// A subscriber that falls further behind than the history skips the trimmed
// events. The channel is closed when ctx ends.
func (b *EventBus) Subscribe(ctx context.Context, since uint64) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		cursor := since
		for {
			b.mu.RLock()
			pending := b.since(cursor)
			wake := b.wake
			b.mu.RUnlock()

			for _, event := range pending {
				select {
				case out <- event:
					cursor = event.Seq
				case <-ctx.Done():
					return
				}
			}
			if len(pending) > 0 {
				continue
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
