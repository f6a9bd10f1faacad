// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/niseyuki/internal/encoder"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg/parse"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg/skills"
	"github.com/ZSC714725/niseyuki/internal/job"
)

// maxEventWait bounds the long-poll of GET /events.
const maxEventWait = 30 * time.Second

// Encoder is the supervisor surface the handlers drive.
type Encoder interface {
	StartEncoding(ctx context.Context, j job.Job) bool
	StopEncoding()
	Snapshot() encoder.Snapshot
	Events() *encoder.EventBus
	Report() []parse.Line
}

// Handler holds dependencies
type Handler struct {
	enc       Encoder
	resolver  encoder.Resolver
	validator job.Validator

	skills struct {
		loaded bool
		skills skills.Skills
		lock   sync.Mutex
	}
}

// NewHandler creates API handler. A nil validator accepts every path.
func NewHandler(enc Encoder, resolver encoder.Resolver, validator job.Validator) *Handler {
	return &Handler{enc: enc, resolver: resolver, validator: validator}
}

// NewRouter mounts the handler under /api/v1 with CORS enabled.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/encode", h.Encode)
		v1.POST("/encode/stop", h.Stop)
		v1.GET("/state", h.State)
		v1.GET("/events", h.Events)
		v1.GET("/report", h.Report)
		v1.POST("/command", h.Command)

		v1.GET("/skills", h.Skills)
		v1.POST("/skills/reload", h.ReloadSkills)
	}
	return r
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

func (h *Handler) bindJob(c *gin.Context) (job.Job, bool) {
	j := job.New("")
	if err := c.ShouldBindJSON(&j); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return job.Job{}, false
	}
	if err := j.Validate(h.validator); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid job", err.Error())
		return job.Job{}, false
	}
	return j, true
}

// Encode POST /api/v1/encode
func (h *Handler) Encode(c *gin.Context) {
	j, ok := h.bindJob(c)
	if !ok {
		return
	}
	j.EnsureID()

	if !h.enc.StartEncoding(context.WithoutCancel(c.Request.Context()), j) {
		errResp(c, http.StatusConflict, "Encoder busy", string(h.enc.Snapshot().State))
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{ID: j.ID, Output: j.ResolvedOutputPath()})
}

// Stop POST /api/v1/encode/stop
func (h *Handler) Stop(c *gin.Context) {
	h.enc.StopEncoding()
	c.JSON(http.StatusOK, h.enc.Snapshot())
}

// State GET /api/v1/state
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.enc.Snapshot())
}

// Events GET /api/v1/events?since=<seq>&wait=<duration>
func (h *Handler) Events(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid since", err.Error())
		return
	}

	var wait time.Duration
	if w := c.Query("wait"); w != "" {
		if wait, err = time.ParseDuration(w); err != nil || wait < 0 {
			errResp(c, http.StatusBadRequest, "Invalid wait", w)
			return
		}
		if wait > maxEventWait {
			wait = maxEventWait
		}
	}

	bus := h.enc.Events()
	events := bus.Since(since)
	if len(events) == 0 && wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		<-bus.Subscribe(ctx, since)
		cancel()
		events = bus.Since(since)
	}
	if events == nil {
		events = []encoder.Event{}
	}

	c.JSON(http.StatusOK, EventsResponse{LastSeq: bus.LastSeq(), Events: events})
}

// Report GET /api/v1/report
func (h *Handler) Report(c *gin.Context) {
	lines := h.enc.Report()

	report := ReportResponse{JobID: h.enc.Snapshot().JobID}
	report.Log = make([][2]string, len(lines))
	for i, line := range lines {
		report.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}

	c.JSON(http.StatusOK, report)
}

// Command POST /api/v1/command
func (h *Handler) Command(c *gin.Context) {
	j, ok := h.bindJob(c)
	if !ok {
		return
	}

	binary := "ffmpeg"
	if h.resolver != nil {
		if path, err := h.resolver.FFmpeg(); err == nil {
			binary = path
		}
	}

	cmd := ffmpeg.Build(j)
	warnings := append(j.Unimplemented(), cmd.Warnings...)
	if warnings == nil {
		warnings = []string{}
	}

	c.JSON(http.StatusOK, CommandResponse{
		Binary:   binary,
		Args:     cmd.Args,
		Command:  cmd.String(binary),
		Output:   j.ResolvedOutputPath(),
		Warnings: warnings,
	})
}

var errNoResolver = errors.New("no ffmpeg resolver configured")

func (h *Handler) loadSkills(ctx context.Context, reload bool) (skills.Skills, error) {
	h.skills.lock.Lock()
	defer h.skills.lock.Unlock()

	if h.skills.loaded && !reload {
		return h.skills.skills, nil
	}
	if h.resolver == nil {
		return skills.Skills{}, errNoResolver
	}

	binary, err := h.resolver.FFmpeg()
	if err != nil {
		return skills.Skills{}, err
	}
	s, err := skills.New(ctx, binary)
	if err != nil {
		return skills.Skills{}, err
	}

	h.skills.skills = s
	h.skills.loaded = true
	return s, nil
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	sk, err := h.loadSkills(c.Request.Context(), false)
	if err != nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(sk))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	sk, err := h.loadSkills(c.Request.Context(), true)
	if err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(sk))
}
