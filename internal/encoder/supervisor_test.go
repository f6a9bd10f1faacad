// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package encoder

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZSC714725/niseyuki/internal/ffmpeg"
	"github.com/ZSC714725/niseyuki/internal/job"
	"github.com/ZSC714725/niseyuki/internal/process"
)

const fakeEngineEnv = "NISEYUKI_TEST_FAKE_ENGINE"

// TestMain lets the test binary stand in for ffmpeg and ffprobe.
func TestMain(m *testing.M) {
	mode := os.Getenv(fakeEngineEnv)
	if mode == "" {
		os.Exit(m.Run())
	}

	for _, arg := range os.Args[1:] {
		if arg == "-show_entries" {
			fmt.Println("10.000000")
			os.Exit(0)
		}
	}

	switch mode {
	case "progress":
		fmt.Fprintln(os.Stderr, "Input #0, matroska,webm, from 'in.mkv':")
		for ms := 0; ms <= 10000; ms += 1000 {
			fmt.Printf("frame=%d\nfps=24.00\nout_time_ms=%d\nspeed=1.00x\nprogress=continue\n", ms/40, ms*1000)
		}
		fmt.Println("progress=end")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "in.mkv: No such file or directory")
		os.Exit(1)
	case "wait-quit":
		fmt.Println("out_time_ms=1000000")
		r := bufio.NewReader(os.Stdin)
		for {
			b, err := r.ReadByte()
			if err != nil {
				os.Exit(2)
			}
			if b == 'q' {
				os.Exit(0)
			}
		}
	case "ignore-quit":
		fmt.Println("out_time_ms=1000000")
		time.Sleep(20 * time.Second)
		os.Exit(0)
	}
	os.Exit(3)
}

type fakeResolver struct {
	ffmpeg, ffprobe string
}

func (r fakeResolver) FFmpeg() (string, error) {
	if r.ffmpeg == "" {
		return "", ffmpeg.ErrNotFound
	}
	return r.ffmpeg, nil
}

func (r fakeResolver) FFprobe() (string, error) {
	if r.ffprobe == "" {
		return "", ffmpeg.ErrNotFound
	}
	return r.ffprobe, nil
}

func testExe(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	return exe
}

func newFakeSupervisor(t *testing.T, mode string, r Resolver) *Supervisor {
	t.Helper()
	t.Setenv(fakeEngineEnv, mode)
	return New(Options{Resolver: r, NewSampler: process.NewNullSampler})
}

func testJob(t *testing.T) job.Job {
	j := job.New(filepath.Join(t.TempDir(), "in.mkv"))
	j.OutputFile = filepath.Join(t.TempDir(), "out.mkv")
	j.DurationMs = 10000
	return j
}

// waitFinished collects events after since up to and including finished.
func waitFinished(t *testing.T, s *Supervisor, since uint64) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []Event
	for e := range s.Subscribe(ctx, since) {
		out = append(out, e)
		if e.Type == EventFinished {
			return out
		}
	}
	t.Fatalf("no finished event, got %+v", out)
	return nil
}

func finishedEvent(events []Event) Event {
	return events[len(events)-1]
}

func messages(events []Event, level Level) []string {
	var out []string
	for _, e := range events {
		if e.Type == EventMessage && e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func progressValues(events []Event) []float64 {
	var out []float64
	for _, e := range events {
		if e.Type == EventProgress {
			out = append(out, e.Progress)
		}
	}
	return out
}

func hasState(events []Event, state State) bool {
	for _, e := range events {
		if e.Type == EventState && e.State == state {
			return true
		}
	}
	return false
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// indexing puts s in the state StartEncoding leaves it in before launch.
func indexing(s *Supervisor, durationMs int64) {
	s.mu.Lock()
	s.setState(StateIndexing)
	s.setProgress(0)
	s.setStatus(StatusIndexing)
	s.durationMs = durationMs
	s.mu.Unlock()
}

func feed(s *Supervisor, lines ...string) {
	for _, l := range lines {
		s.handleLine(process.Line{Stream: process.Stdout, Data: l, Timestamp: time.Now()})
	}
}

func TestProgressMonotonic(t *testing.T) {
	s := New(Options{})
	indexing(s, 10000)
	since := s.Events().LastSeq()

	feed(s,
		"out_time_ms=3000",     // 0.0003, suppressed
		"out_time_ms=6000",     // 0.0006
		"out_time_ms=10000",    // +0.0004, suppressed
		"out_time_ms=12000",    // 0.0012
		"out_time_ms=5000000",  // 0.5
		"out_time_ms=4000000",  // lower, ignored
		"out_time_ms=20000000", // clamped to 1
	)

	got := progressValues(s.Events().Since(since))
	want := []float64{0.0006, 0.0012, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	prev := 0.0
	for i, p := range got {
		if math.Abs(p-want[i]) > 1e-9 {
			t.Fatalf("progress = %v, want %v", got, want)
		}
		if p < 0 || p > 1 || p-prev <= progressEpsilon {
			t.Fatalf("progress step %v -> %v", prev, p)
		}
		prev = p
	}
	if st := s.State(); st != StateEncoding {
		t.Fatalf("state = %s", st)
	}
}

func TestDialectEquivalence(t *testing.T) {
	structured := New(Options{})
	indexing(structured, 10000)
	feed(structured, "out_time_ms=5000000")

	freeText := New(Options{})
	indexing(freeText, 10000)
	feed(freeText, "frame=  120 fps= 24 q=28.0 size=     512kB time=00:00:05.00 bitrate= 838.9kbits/s speed=1.01x")

	a, b := structured.Snapshot(), freeText.Snapshot()
	if math.Abs(a.Progress-0.5) > 1e-9 || math.Abs(b.Progress-0.5) > 1e-9 {
		t.Fatalf("progress: structured %v, free text %v", a.Progress, b.Progress)
	}
	if a.State != StateEncoding || b.State != StateEncoding {
		t.Fatalf("state: structured %s, free text %s", a.State, b.State)
	}
	if a.Status != "Encoding (00:00:05)" || b.Status != "Encoding (00:00:05)" {
		t.Fatalf("status: structured %q, free text %q", a.Status, b.Status)
	}
}

func TestStatusTexts(t *testing.T) {
	s := New(Options{})
	indexing(s, 0)

	feed(s, "frame=42")
	if st := s.Snapshot().Status; st != "Encoding (frame 42)" {
		t.Fatalf("status = %q", st)
	}
	feed(s, "out_time=25:00:00.000000")
	if st := s.Snapshot().Status; st != "Encoding (25:00:00)" {
		t.Fatalf("status = %q", st)
	}
	feed(s, "speed=2.5x")
	if st := s.Snapshot().Status; st != "Encoding speed 2.5x" {
		t.Fatalf("status = %q", st)
	}
	since := s.Events().LastSeq()
	feed(s, "speed=   1x", "bitrate=  62.5kbits/s")
	if st := s.Snapshot().Status; st != "Encoding speed 1x" {
		t.Fatalf("padded speed status = %q", st)
	}
	if got := messages(s.Events().Since(since), LevelInfo); len(got) != 0 {
		t.Fatalf("padded lines forwarded: %q", got)
	}
	if p := s.Snapshot().Progress; p != 0 {
		t.Fatalf("progress without duration = %v", p)
	}

	// frame does not override the time status once the duration is known
	s.mu.Lock()
	s.durationMs = 100000
	s.mu.Unlock()
	feed(s, "out_time_ms=1000000", "frame=43")
	if st := s.Snapshot().Status; st != "Encoding (00:00:01)" {
		t.Fatalf("status = %q", st)
	}

	feed(s, "progress=end")
	if p := s.Snapshot().Progress; p != 1 {
		t.Fatalf("progress after end = %v", p)
	}
}

func TestLinesForwarded(t *testing.T) {
	s := New(Options{})
	indexing(s, 10000)
	since := s.Events().LastSeq()

	feed(s, "Stream mapping:", "", "total_size=1024", "encoder=Lavf60.16.100", "out_time_ms=N/A")

	got := messages(s.Events().Since(since), LevelInfo)
	if len(got) != 2 || got[0] != "Stream mapping:" || got[1] != "encoder=Lavf60.16.100" {
		t.Fatalf("messages = %q", got)
	}
	if st := s.State(); st != StateIndexing {
		t.Fatalf("state = %s", st)
	}
	if n := len(s.Report()); n != 5 {
		t.Fatalf("report has %d lines", n)
	}
}

func TestRunCompletes(t *testing.T) {
	exe := testExe(t)
	s := newFakeSupervisor(t, "progress", fakeResolver{ffmpeg: exe})

	if !s.StartEncoding(context.Background(), testJob(t)) {
		t.Fatal("start rejected")
	}
	events := waitFinished(t, s, 0)

	if e := events[0]; e.Type != EventState || e.State != StateIndexing {
		t.Fatalf("first event = %+v", e)
	}
	if e := events[1]; e.Type != EventProgress || e.Progress != 0 {
		t.Fatalf("second event = %+v", e)
	}
	if e := events[2]; e.Type != EventStatus || e.Status != StatusIndexing {
		t.Fatalf("third event = %+v", e)
	}
	if !hasState(events, StateEncoding) {
		t.Fatal("never entered encoding")
	}
	if f := finishedEvent(events); !f.Success {
		t.Fatalf("finished = %+v", f)
	}

	info := messages(events, LevelInfo)
	if !containsPrefix(info, "Starting ffmpeg: ") {
		t.Fatalf("no launch message in %q", info)
	}
	if !containsPrefix(info, "Input #0") {
		t.Fatalf("stderr line not forwarded: %q", info)
	}

	// progress rises to 1.0 then the finish resets it
	values := progressValues(events)
	if len(values) < 3 || values[len(values)-1] != 0 || values[len(values)-2] != 1 {
		t.Fatalf("progress = %v", values)
	}
	for i := 2; i < len(values)-1; i++ {
		if values[i] < values[i-1] {
			t.Fatalf("progress decreased: %v", values)
		}
	}

	snap := s.Snapshot()
	if snap.State != StateIdle || snap.Progress != 0 || snap.Status != StatusCompleted {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.FFmpeg != "" || snap.DurationMs != 0 {
		t.Fatalf("session not cleared: %+v", snap)
	}
}

func TestRunFails(t *testing.T) {
	s := newFakeSupervisor(t, "fail", fakeResolver{ffmpeg: testExe(t)})

	s.StartEncoding(context.Background(), testJob(t))
	events := waitFinished(t, s, 0)

	if f := finishedEvent(events); f.Success {
		t.Fatalf("finished = %+v", f)
	}
	if !containsPrefix(messages(events, LevelInfo), "in.mkv: No such file") {
		t.Fatal("error line not forwarded")
	}
	if st := s.Snapshot().Status; st != StatusFailed {
		t.Fatalf("status = %q", st)
	}
}

func TestUnresolvedEngine(t *testing.T) {
	s := newFakeSupervisor(t, "progress", fakeResolver{})

	if !s.StartEncoding(context.Background(), testJob(t)) {
		t.Fatal("start rejected")
	}
	if st := s.State(); st != StateIdle {
		t.Fatalf("state after start = %s", st)
	}

	events := waitFinished(t, s, 0)
	if f := finishedEvent(events); f.Success {
		t.Fatalf("finished = %+v", f)
	}
	if !containsPrefix(messages(events, LevelWarn), WarnPrefix+"Unable to locate ffmpeg") {
		t.Fatalf("warnings = %q", messages(events, LevelWarn))
	}
	if containsPrefix(messages(events, LevelInfo), "Starting ffmpeg") {
		t.Fatal("engine launched")
	}
}

func TestSecondStartIgnored(t *testing.T) {
	s := newFakeSupervisor(t, "wait-quit", fakeResolver{ffmpeg: testExe(t)})

	first := testJob(t)
	first.ID = "first"
	if !s.StartEncoding(context.Background(), first) {
		t.Fatal("first start rejected")
	}
	since := s.Events().LastSeq()

	second := testJob(t)
	second.ID = "second"
	if s.StartEncoding(context.Background(), second) {
		t.Fatal("second start accepted")
	}
	if got := s.Events().Since(since); len(got) != 0 && got[0].JobID != "first" {
		t.Fatalf("second start emitted %+v", got)
	}
	if id := s.Snapshot().JobID; id != "first" {
		t.Fatalf("job id = %q", id)
	}

	s.StopEncoding()
	events := waitFinished(t, s, 0)
	if f := finishedEvent(events); !f.Success || f.JobID != "first" {
		t.Fatalf("finished = %+v", f)
	}
	if !hasState(events, StateStopping) {
		t.Fatal("never entered stopping")
	}
}

func TestStopForcesKill(t *testing.T) {
	s := newFakeSupervisor(t, "ignore-quit", fakeResolver{ffmpeg: testExe(t)})
	s.StartEncoding(context.Background(), testJob(t))

	begin := time.Now()
	s.StopEncoding()
	if elapsed := time.Since(begin); elapsed > 4*time.Second {
		t.Fatalf("stop blocked for %s", elapsed)
	}

	events := waitFinished(t, s, 0)
	if f := finishedEvent(events); f.Success {
		t.Fatalf("killed run reported success: %+v", f)
	}
	if elapsed := time.Since(begin); elapsed < DefaultStopTimeout || elapsed > 6*time.Second {
		t.Fatalf("finished after %s", elapsed)
	}

	// a second stop on an idle supervisor does nothing
	s.StopEncoding()
}

func TestStopWhenIdle(t *testing.T) {
	s := New(Options{})
	s.StopEncoding()
	if n := s.Events().LastSeq(); n != 0 {
		t.Fatalf("idle stop emitted %d events", n)
	}
}

func TestWarnings(t *testing.T) {
	s := newFakeSupervisor(t, "fail", fakeResolver{ffmpeg: testExe(t)})

	j := testJob(t)
	j.DurationMs = 0
	j.IntroOutro.IntroPath = "/media/intro.mkv"
	j.AdditionalSubtitles = []string{"/media/extra.ass"}
	j.Video.ResizeMode = job.ResizeCustom

	s.StartEncoding(context.Background(), j)
	warnings := messages(waitFinished(t, s, 0), LevelWarn)

	for _, prefix := range []string{
		WarnPrefix + "ffprobe not found",
		WarnPrefix + "Intro/outro stitching",
		WarnPrefix + "Additional subtitle tracks",
	} {
		if !containsPrefix(warnings, prefix) {
			t.Errorf("missing %q in %q", prefix, warnings)
		}
	}
	if len(warnings) < 4 {
		t.Errorf("custom resize warning missing: %q", warnings)
	}
}

func TestProbedDuration(t *testing.T) {
	exe := testExe(t)
	s := newFakeSupervisor(t, "progress", fakeResolver{ffmpeg: exe, ffprobe: exe})

	j := testJob(t)
	j.DurationMs = 0
	s.StartEncoding(context.Background(), j)
	events := waitFinished(t, s, 0)

	var partial bool
	for _, p := range progressValues(events) {
		if p > 0 && p < 1 {
			partial = true
		}
	}
	if !partial {
		t.Fatalf("no ratio from probed duration: %v", progressValues(events))
	}
}

func TestJobCopied(t *testing.T) {
	s := newFakeSupervisor(t, "wait-quit", fakeResolver{ffmpeg: testExe(t)})

	j := testJob(t)
	want := j.OutputFile
	s.StartEncoding(context.Background(), j)
	j.OutputFile = "/elsewhere/out.mkv"

	if got := s.Snapshot().Output; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	s.StopEncoding()
	waitFinished(t, s, 0)
}
