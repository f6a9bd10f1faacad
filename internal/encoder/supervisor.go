// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package encoder supervises one ffmpeg run at a time and turns its output
// into ordered state, progress, status and message events.

package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
	"github.com/ZSC714725/niseyuki/internal/ffmpeg/parse"
	"github.com/ZSC714725/niseyuki/internal/job"
	"github.com/ZSC714725/niseyuki/internal/logger"
	"github.com/ZSC714725/niseyuki/internal/process"
)

const (
	DefaultStartTimeout = 5 * time.Second
	DefaultStopTimeout  = 2 * time.Second

	// QuitToken asks ffmpeg to finish the output and exit.
	QuitToken = "q"

	// progress changes at or below this are not re-emitted
	progressEpsilon = 0.0005
)

// Resolver finds the engine and probe executables.
type Resolver interface {
	FFmpeg() (string, error)
	FFprobe() (string, error)
}

// Options for a Supervisor. Zero values take defaults.
type Options struct {
	Resolver     Resolver
	StartTimeout time.Duration
	ProbeTimeout time.Duration
	StopTimeout  time.Duration
	History      int
	ReportLines  int
	Logger       logger.Logger
	// NewSampler builds the usage sampler for each run.
	NewSampler func() process.Sampler
}

// Snapshot is the observable session state.
type Snapshot struct {
	State      State   `json:"state"`
	Progress   float64 `json:"progress"`
	Status     string  `json:"status"`
	JobID      string  `json:"job_id,omitempty"`
	Output     string  `json:"output,omitempty"`
	FFmpeg     string  `json:"ffmpeg,omitempty"`
	FFprobe    string  `json:"ffprobe,omitempty"`
	DurationMs int64   `json:"duration_ms"`
	PID        int     `json:"pid,omitempty"`
	CPU        float64 `json:"cpu"`
	Memory     uint64  `json:"memory"`
	LastSeq    uint64  `json:"last_seq"`
}

// Supervisor owns the engine subprocess and the session fields of the
// current run. StartEncoding while a run is in flight is ignored.
type Supervisor struct {
	opts   Options
	logger logger.Logger
	bus    *EventBus
	report *parse.Log

	mu         sync.Mutex
	state      State
	progress   float64
	status     string
	jobID      string
	output     string
	ffmpegPath string
	probePath  string
	durationMs int64
	proc       process.Process
}

// New creates an idle supervisor.
func New(opts Options) *Supervisor {
	if opts.Resolver == nil {
		opts.Resolver = ffmpeg.DefaultLocator()
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = ffmpeg.DefaultProbeTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.NewSampler == nil {
		opts.NewSampler = process.NewSysSampler
	}

	return &Supervisor{
		opts:   opts,
		logger: opts.Logger,
		bus:    NewEventBus(opts.History),
		report: parse.NewLog(opts.ReportLines),
		state:  StateIdle,
	}
}

// Events exposes the ordered event history.
func (s *Supervisor) Events() *EventBus { return s.bus }

// Subscribe is a shortcut for Events().Subscribe.
func (s *Supervisor) Subscribe(ctx context.Context, since uint64) <-chan Event {
	return s.bus.Subscribe(ctx, since)
}

// Report returns the most recent engine output lines.
func (s *Supervisor) Report() []parse.Line {
	return s.report.Lines()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the session fields and engine usage.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:      s.state,
		Progress:   s.progress,
		Status:     s.status,
		JobID:      s.jobID,
		Output:     s.output,
		FFmpeg:     s.ffmpegPath,
		FFprobe:    s.probePath,
		DurationMs: s.durationMs,
	}
	proc := s.proc
	s.mu.Unlock()

	if proc != nil {
		st := proc.Status()
		snap.PID = st.PID
		snap.CPU = st.CPU
		snap.Memory = st.Memory
	}
	snap.LastSeq = s.bus.LastSeq()
	return snap
}

// StartEncoding begins a run of j and reports whether it was accepted. It
// blocks through duration probing and engine launch, each bounded by its
// timeout; the engine output is then consumed in the background. Failures
// after acceptance end the run with a finished(false) event.
func (s *Supervisor) StartEncoding(ctx context.Context, j job.Job) bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.logger.Debug("start ignored, supervisor is %s", s.State())
		return false
	}

	j = j.Clone()
	j.EnsureID()
	s.jobID = j.ID
	s.output = j.ResolvedOutputPath()
	s.report.Reset()
	s.setState(StateIndexing)
	s.setProgress(0)
	s.setStatus(StatusIndexing)
	s.mu.Unlock()

	s.logger.Info("job %s: %s -> %s", j.ID, j.VideoPath, s.output)

	engine, err := s.opts.Resolver.FFmpeg()
	if err != nil {
		s.warn("Unable to locate ffmpeg executable: %v", err)
		s.finish(false)
		return true
	}
	probe, probeErr := s.opts.Resolver.FFprobe()
	if probeErr != nil {
		probe = ""
	}

	duration := j.DurationMs
	if duration <= 0 {
		duration = s.probe(ctx, probe, j.VideoPath)
	}

	s.mu.Lock()
	s.ffmpegPath = engine
	s.probePath = probe
	s.durationMs = duration
	s.mu.Unlock()

	for _, w := range j.Unimplemented() {
		s.warn("%s", w)
	}

	cmd := ffmpeg.Build(j)
	for _, w := range cmd.Warnings {
		s.warn("%s", w)
	}

	if s.State() == StateStopping {
		s.finish(false)
		return true
	}

	proc, err := process.New(process.Config{
		Binary:  engine,
		Args:    cmd.Args,
		Sampler: s.opts.NewSampler(),
		Logger:  s.logger,
	})
	if err == nil {
		err = proc.Start(s.opts.StartTimeout)
	}
	if err != nil {
		s.warn("Failed to start ffmpeg: %v", err)
		s.finish(false)
		return true
	}

	s.mu.Lock()
	s.proc = proc
	stopping := s.state == StateStopping
	s.message(LevelInfo, "Starting ffmpeg: "+cmd.String(engine))
	s.mu.Unlock()

	if stopping {
		go s.stopProcess(proc)
	}
	go s.consume(proc)
	return true
}

func (s *Supervisor) probe(ctx context.Context, ffprobe, source string) int64 {
	if ffprobe == "" {
		s.warn("ffprobe not found; progress will be reported without a percentage.")
		return 0
	}

	ms, err := ffmpeg.ProbeDuration(ctx, ffprobe, source, s.opts.ProbeTimeout)
	switch {
	case errors.Is(err, ffmpeg.ErrProbeTimeout):
		s.warn("ffprobe timed out while reading duration.")
	case err != nil:
		s.warn("ffprobe failed: %v", err)
	case ms <= 0:
		s.warn("Unable to determine media duration; progress may be inaccurate.")
	}
	return ms
}

// StopEncoding asks the engine to quit and kills it if it is still running
// after the stop timeout. It is a no-op when idle or already stopping.
func (s *Supervisor) StopEncoding() {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateStopping {
		s.mu.Unlock()
		return
	}
	s.setState(StateStopping)
	proc := s.proc
	s.mu.Unlock()

	if proc != nil {
		s.stopProcess(proc)
	}
}

func (s *Supervisor) stopProcess(proc process.Process) {
	if err := proc.Stop(QuitToken, s.opts.StopTimeout); err != nil {
		s.logger.Error("stopping ffmpeg: %v", err)
	}
}

func (s *Supervisor) consume(proc process.Process) {
	for line := range proc.Lines() {
		s.handleLine(line)
	}

	res := proc.Wait()
	if !res.Success() {
		s.logger.Info("ffmpeg exited: code %d, signaled %t, %v", res.ExitCode, res.Signaled, res.Err)
	}
	s.finish(res.Success())
}

func (s *Supervisor) handleLine(line process.Line) {
	s.report.Add(line.Data)
	s.logger.Debug("ffmpeg %s: %s", line.Stream, line.Data)

	rec := parse.Classify(line.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !rec.Handled {
		s.message(LevelInfo, line.Data)
		return
	}

	if rec.Encoding() && s.state == StateIndexing {
		s.setState(StateEncoding)
	}

	if rec.HasTime {
		if s.durationMs > 0 {
			s.advance(float64(rec.TimeMs) / float64(s.durationMs))
		}
		s.setStatus("Encoding (" + ffmpeg.FormatTimecode(rec.TimeMs) + ")")
	}
	if rec.HasFrame && s.durationMs <= 0 {
		s.setStatus(fmt.Sprintf("Encoding (frame %d)", rec.Frame))
	}
	if rec.HasSpeed {
		s.setStatus("Encoding speed " + rec.Speed)
	}
	if rec.End {
		s.setProgress(1)
	}
}

// advance raises progress to ratio (clamped to [0, 1]) when it grew by more
// than progressEpsilon. Progress never goes down here.
func (s *Supervisor) advance(ratio float64) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	if ratio-s.progress > progressEpsilon {
		s.setProgress(ratio)
	}
}

func (s *Supervisor) finish(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateIdle)
	s.setProgress(0)
	if success {
		s.setStatus(StatusCompleted)
	} else {
		s.setStatus(StatusFailed)
	}

	s.logger.Info("job %s finished, success %t", s.jobID, success)
	s.publish(Event{Type: EventFinished, Success: success})

	s.ffmpegPath = ""
	s.probePath = ""
	s.durationMs = 0
	s.proc = nil
}

// The helpers below must be called with s.mu held.

func (s *Supervisor) publish(e Event) {
	e.JobID = s.jobID
	s.bus.Publish(e)
}

func (s *Supervisor) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Info("state %s -> %s", s.state, state)
	s.state = state
	s.publish(Event{Type: EventState, State: state})
}

func (s *Supervisor) setProgress(p float64) {
	s.progress = p
	s.publish(Event{Type: EventProgress, Progress: p})
}

func (s *Supervisor) setStatus(status string) {
	if s.status == status {
		return
	}
	s.status = status
	s.publish(Event{Type: EventStatus, Status: status})
}

func (s *Supervisor) message(level Level, text string) {
	s.publish(Event{Type: EventMessage, Level: level, Message: text})
}

func (s *Supervisor) warn(format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	s.logger.Warn("%s", text)

	s.mu.Lock()
	s.message(LevelWarn, WarnPrefix+text)
	s.mu.Unlock()
}
