// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心
//
// Package process wraps exec.Cmd for running one engine invocation with
// line-oriented output and a graceful stop.

package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	ErrNoBinary       = errors.New("no valid binary given")
	ErrStartTimeout   = errors.New("process did not start in time")
	ErrAlreadyStarted = errors.New("process already started")
)

// Stream names the pipe a line was read from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Line is one line of process output.
type Line struct {
	Stream    Stream
	Data      string
	Timestamp time.Time
}

// Result describes how the process ended.
type Result struct {
	ExitCode int
	Signaled bool
	Err      error
}

// Success reports a clean zero exit.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.Signaled
}

// Process is one launch of a program. It cannot be restarted.
type Process interface {
	Start(timeout time.Duration) error
	// Stop writes token to stdin and waits up to grace for an exit before
	// killing. An empty token sends an interrupt instead.
	Stop(token string, grace time.Duration) error
	Kill() error
	IsRunning() bool
	// Lines yields stdout and stderr lines; it is closed once both pipes hit EOF.
	Lines() <-chan Line
	Done() <-chan struct{}
	// Wait blocks until the process has exited.
	Wait() Result
	Status() Status
}

// Config for a process
type Config struct {
	Binary string
	Args   []string
	// Env replaces the environment when non-nil.
	Env     []string
	Sampler Sampler
	Logger  Logger
}

// Status of a process
type Status struct {
	State    string
	PID      int
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateIdle      stateType = "idle"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFinished  stateType = "finished"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary string
	args   []string
	env    []string
	cmd    *exec.Cmd
	pid    int
	stdin  io.WriteCloser

	state struct {
		state stateType
		time  time.Time
		lock  sync.Mutex
	}

	lines  chan Line
	done   chan struct{}
	result Result

	sampler Sampler
	logger  Logger
}

// New creates a new process
func New(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, ErrNoBinary
	}

	p := &process{
		binary:  config.Binary,
		args:    config.Args,
		env:     config.Env,
		sampler: config.Sampler,
		logger:  config.Logger,
		lines:   make(chan Line, 64),
		done:    make(chan struct{}),
	}

	if p.sampler == nil {
		p.sampler = NewSysSampler()
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.state.state = stateIdle
	p.state.time = time.Now()
	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	from := p.state.state
	ok := false

	switch from {
	case stateIdle:
		ok = state == stateStarting
	case stateStarting:
		ok = state == stateRunning || state == stateFailed
	case stateRunning:
		ok = state == stateFinishing || state == stateFinished || state == stateFailed || state == stateKilled
	case stateFinishing:
		ok = state == stateFinished || state == stateFailed || state == stateKilled
	}

	if !ok {
		return fmt.Errorf("can't change from %s to %s", from, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	p.logger.Debug("process %s: %s -> %s", p.binary, from, state)
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()

	p.state.lock.Lock()
	s := Status{
		State:    p.state.state.String(),
		PID:      p.pid,
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
	}
	p.state.lock.Unlock()

	s.CPU = cpu
	s.Memory = memory
	return s
}

func (p *process) Lines() <-chan Line    { return p.lines }
func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Wait() Result {
	<-p.done
	return p.result
}

func (p *process) Start(timeout time.Duration) error {
	if err := p.setState(stateStarting); err != nil {
		return ErrAlreadyStarted
	}

	fail := func(err error) error {
		p.setState(stateFailed)
		p.result = Result{ExitCode: -1, Err: err}
		close(p.lines)
		close(p.done)
		return err
	}

	cmd := exec.Command(p.binary, p.args...)
	if p.env != nil {
		cmd.Env = p.env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(err)
	}

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-started:
		if err != nil {
			return fail(err)
		}
	case <-timer:
		go func() {
			if err := <-started; err == nil {
				cmd.Process.Kill()
				cmd.Wait()
			}
		}()
		return fail(ErrStartTimeout)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.state.lock.Lock()
	p.pid = cmd.Process.Pid
	p.state.lock.Unlock()
	if err := p.sampler.Start(p.pid); err != nil {
		p.logger.Debug("usage sampling unavailable for pid %d: %v", p.pid, err)
	}
	p.setState(stateRunning)

	var readers sync.WaitGroup
	readers.Add(2)
	go p.reader(Stdout, stdout, &readers)
	go p.reader(Stderr, stderr, &readers)
	go p.waiter(&readers)

	return nil
}

func (p *process) Stop(token string, grace time.Duration) error {
	state := p.getState()
	if !state.IsRunning() || state == stateStarting {
		return nil
	}
	if err := p.setState(stateFinishing); err != nil {
		// already finishing or gone
		return nil
	}

	var err error
	switch {
	case token != "":
		_, err = io.WriteString(p.stdin, token)
	case runtime.GOOS == "windows":
		err = p.cmd.Process.Kill()
	default:
		err = p.cmd.Process.Signal(os.Interrupt)
	}
	if err != nil {
		p.logger.Debug("graceful stop of %s failed: %v", p.binary, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	p.logger.Info("process %d did not exit within %s, killing", p.pid, grace)
	return p.Kill()
}

func (p *process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *process) reader(stream Stream, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	for scanner.Scan() {
		p.lines <- Line{Stream: stream, Data: scanner.Text(), Timestamp: time.Now()}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug("%s of %s: %v", stream, p.binary, err)
		// keep the pipe drained so the child never blocks on a write
		io.Copy(io.Discard, r)
	}
}

func (p *process) waiter(readers *sync.WaitGroup) {
	readers.Wait()
	close(p.lines)

	err := p.cmd.Wait()
	p.stdin.Close()
	p.sampler.Stop()

	res := Result{}
	if err != nil {
		res.Err = err
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Signaled = res.ExitCode == -1
		}
	}

	switch {
	case res.Success():
		p.setState(stateFinished)
	case res.Signaled:
		p.setState(stateKilled)
	default:
		p.setState(stateFailed)
	}

	p.result = res
	close(p.done)
}

// scanLine splits on CR, LF or CRLF and skips empty lines, so ffmpeg's
// carriage-return stats updates come out as separate lines.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
