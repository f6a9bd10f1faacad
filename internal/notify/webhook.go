// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package notify posts finished-run events to a webhook.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ZSC714725/niseyuki/internal/encoder"
	"github.com/ZSC714725/niseyuki/internal/logger"
)

// Options for a Webhook
type Options struct {
	URL     string
	Retries int
	WaitMin time.Duration
	WaitMax time.Duration
	Logger  logger.Logger
}

// Payload is the JSON body posted for each finished run.
type Payload struct {
	Seq       uint64    `json:"seq"`
	JobID     string    `json:"job_id"`
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Webhook delivers payloads with retries.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     logger.Logger
}

// NewWebhook creates a webhook client with retries
func NewWebhook(opts Options) *Webhook {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	if opts.WaitMin > 0 {
		retryClient.RetryWaitMin = opts.WaitMin
	}
	if opts.WaitMax > 0 {
		retryClient.RetryWaitMax = opts.WaitMax
	}
	retryClient.Logger = nil

	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Webhook{
		url:        opts.URL,
		httpClient: retryClient.StandardClient(),
		logger:     opts.Logger,
	}
}

// Send posts one finished event.
func (w *Webhook) Send(ctx context.Context, e encoder.Event) error {
	p := Payload{
		Seq:       e.Seq,
		JobID:     e.JobID,
		Success:   e.Success,
		Status:    encoder.StatusFailed,
		Timestamp: e.Timestamp,
	}
	if e.Success {
		p.Status = encoder.StatusCompleted
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Watch sends every finished event published on bus after the call, until
// ctx is done. Delivery errors are logged and do not stop the watch.
func (w *Webhook) Watch(ctx context.Context, bus *encoder.EventBus) {
	for e := range bus.Subscribe(ctx, bus.LastSeq()) {
		if e.Type != encoder.EventFinished {
			continue
		}
		if err := w.Send(ctx, e); err != nil {
			w.logger.Error("notify job %s: %v", e.JobID, err)
			continue
		}
		w.logger.Debug("notified job %s, success %t", e.JobID, e.Success)
	}
}
