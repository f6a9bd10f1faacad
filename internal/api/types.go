// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package api

import "github.com/ZSC714725/niseyuki/internal/encoder"

// SubmitResponse for an accepted job
type SubmitResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// StateResponse is the supervisor snapshot
type StateResponse = encoder.Snapshot

// EventsResponse for incremental event reads
type EventsResponse struct {
	LastSeq uint64          `json:"last_seq"`
	Events  []encoder.Event `json:"events"`
}

// ReportResponse for engine output
type ReportResponse struct {
	JobID string      `json:"job_id,omitempty"`
	Log   [][2]string `json:"log"`
}

// CommandResponse is an argument preview
type CommandResponse struct {
	Binary   string   `json:"binary"`
	Args     []string `json:"args"`
	Command  string   `json:"command"`
	Output   string   `json:"output"`
	Warnings []string `json:"warnings"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
