// Package agent owns the external agent process lifecycle: spawning the CLI
// in one-shot batch mode, streaming its stdout through the stream parser,
// enforcing a wall-clock deadline, and resolving a single Outcome per run.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/chatclaw/internal/stream"
	"github.com/user/chatclaw/internal/types"
)

// Sentinel errors for run operations.
var (
	// ErrRunInProgress indicates Execute was called while a run is active.
	// Callers must check IsRunning and queue follow-up input instead.
	ErrRunInProgress = errors.New("agent: run already in progress")

	// ErrUnavailable indicates the agent binary could not be found or
	// started. No run ever began, so there is no Outcome.
	ErrUnavailable = errors.New("agent: binary unavailable")
)

// Outcome is the resolved result of one run.
type Outcome struct {
	// Success is true on clean exit, or whenever any final text was
	// accumulated before exit or termination.
	Success bool

	// ClaudeSessionID is the external agent's resumable session id, first
	// non-empty value seen during the run.
	ClaudeSessionID string

	// Events is the full ordered event sequence of the run.
	Events []stream.Event

	// FinalText is the last known assistant or final-result text.
	FinalText string

	// ErrorDetail carries the captured stderr or an exit-status message
	// when Success is false.
	ErrorDetail string
}

// Runner supervises one external agent process at a time. At most one run may
// be in flight per Runner; a second Execute returns ErrRunInProgress.
type Runner struct {
	binary  string
	timeout time.Duration
	parser  *stream.Parser

	mu       sync.Mutex
	running  bool
	cmd      *exec.Cmd
	aborted  bool
	timedOut bool
	exited   bool

	subMu       sync.Mutex
	nextSub     int
	eventSubs   map[int]func(stream.Event)
	partialSubs map[int]func(string)
}

// NewRunner creates a Runner for the given binary with a per-run wall-clock
// timeout.
func NewRunner(binary string, timeout time.Duration) *Runner {
	return &Runner{
		binary:      binary,
		timeout:     timeout,
		parser:      stream.NewParser(),
		eventSubs:   make(map[int]func(stream.Event)),
		partialSubs: make(map[int]func(string)),
	}
}

// IsRunning reports whether a run is currently in flight.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Subscribe registers a callback invoked for every event as it is parsed,
// independent of the final resolution. The returned function cancels the
// subscription.
func (r *Runner) Subscribe(fn func(stream.Event)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.eventSubs[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.eventSubs, id)
	}
}

// SubscribePartial registers a callback invoked with the latest accumulated
// assistant/result text whenever it advances, so a live view can always show
// the newest known text. The returned function cancels the subscription.
func (r *Runner) SubscribePartial(fn func(string)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.partialSubs[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.partialSubs, id)
	}
}

// Abort forcibly terminates the current run. It has the same effect as the
// timeout deadline: the run resolves as failure unless text was already
// accumulated. Abort is a no-op when no run is in flight.
func (r *Runner) Abort() {
	if r.markAborted() {
		r.kill()
	}
}

// markAborted flags the run as user-terminated. It returns false once the
// process has exited so a late Abort cannot relabel a natural exit while its
// outcome is being resolved.
func (r *Runner) markAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exited {
		return false
	}
	r.aborted = true
	return true
}

// markTimedOut flags the run as over-deadline, with the same exited guard:
// the timer can fire in the window between process exit and timer.Stop, and
// must not turn a finished run into a deadline failure.
func (r *Runner) markTimedOut() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exited {
		return false
	}
	r.timedOut = true
	return true
}

// Execute runs the external agent to completion and resolves an Outcome.
// It suspends until the process exits or is terminated. A launch failure
// (binary missing, unrunnable) is returned as an error distinct from any
// Outcome, since no run ever began.
func (r *Runner) Execute(ctx context.Context, req Request) (*Outcome, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.running = true
	r.aborted = false
	r.timedOut = false
	r.exited = false
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.cmd = nil
		r.mu.Unlock()
	}()

	// Fresh correlator per run: call ids must not collide across runs.
	r.parser.Reset()

	path, err := lookBinary(r.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, r.binary, err)
	}

	cmd := exec.Command(path, buildArgs(req)...)
	cmd.Env = runEnv()
	// The agent spawns tool subprocesses that inherit the stdout pipe. Run
	// the whole tree in its own process group so termination reaches every
	// descendant; otherwise a surviving child keeps the pipe open and the
	// pump blocks past the deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Stdin stays nil so the child reads from the null device. The agent is
	// invoked in one-shot batch mode; follow-up input arrives as a new
	// resumed run, never through a live pipe.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrUnavailable, path, err)
	}
	runID := types.NewRunID()
	slog.Debug("agent spawned", "run_id", string(runID), "binary", path, "pid", cmd.Process.Pid, "resume", req.ResumeSessionID != "")

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	// Wall-clock deadline, armed at spawn, independent of activity.
	timer := time.AfterFunc(r.timeout, func() {
		if r.markTimedOut() {
			r.kill()
		}
	})
	defer timer.Stop()

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if r.markAborted() {
				r.kill()
			}
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	acc := &accumulator{}
	var lb stream.LineBuffer
	var errBuf bytes.Buffer

	var g errgroup.Group
	g.Go(func() error {
		buf := make([]byte, 32*1024)
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				for _, line := range lb.Append(buf[:n]) {
					r.consumeLine(line, acc)
				}
			}
			if readErr != nil {
				// EOF or a pipe closed by termination; either way the
				// stream is over.
				return nil
			}
		}
	})
	g.Go(func() error {
		_, _ = io.Copy(&errBuf, stderr)
		return nil
	})
	_ = g.Wait()
	waitErr := cmd.Wait()

	// Marking exited and reading the flags is one critical section, so a
	// timer or abort landing after this point cannot change the resolution.
	r.mu.Lock()
	r.exited = true
	aborted, timedOut := r.aborted, r.timedOut
	r.mu.Unlock()

	// A terminated process did not reach a defined output boundary, so its
	// buffered partial line is discarded; a natural exit gets one last parse.
	if !aborted && !timedOut {
		if rest := strings.TrimSpace(lb.Flush()); rest != "" {
			r.consumeLine(rest, acc)
		}
	}

	out := &Outcome{
		ClaudeSessionID: acc.sessionID,
		Events:          acc.events,
		FinalText:       acc.finalText,
	}
	if waitErr == nil || acc.finalText != "" {
		out.Success = true
		return out, nil
	}

	detail := strings.TrimSpace(errBuf.String())
	if detail == "" {
		switch {
		case timedOut:
			detail = fmt.Sprintf("run exceeded %s deadline", r.timeout)
		case aborted:
			detail = "run aborted"
		default:
			detail = waitErr.Error()
		}
	}
	out.ErrorDetail = detail
	slog.Warn("agent run failed", "run_id", string(runID), "detail", detail, "events", len(acc.events))
	return out, nil
}

// accumulator collects the run's outcome as lines arrive. It is owned
// exclusively by the stdout pump until the pump finishes.
type accumulator struct {
	events    []stream.Event
	sessionID string
	finalText string
}

// consumeLine parses one line and folds its events into the accumulator,
// forwarding each to subscribers in arrival order.
func (r *Runner) consumeLine(line string, acc *accumulator) {
	for _, ev := range r.parser.Parse(line) {
		if ev.SessionID != "" {
			switch {
			case acc.sessionID == "":
				acc.sessionID = ev.SessionID
			case acc.sessionID != ev.SessionID:
				// Protocol violation: the external session id must not
				// change within a run. Keep the first value.
				slog.Warn("agent session id changed mid-run", "have", acc.sessionID, "got", ev.SessionID)
			}
		}
		acc.events = append(acc.events, ev)
		r.publishEvent(ev)
		if (ev.Kind == stream.EventText || ev.Kind == stream.EventResult) && ev.Text != "" {
			acc.finalText = ev.Text
			r.publishPartial(ev.Text)
		}
	}
}

func (r *Runner) publishEvent(ev stream.Event) {
	r.subMu.Lock()
	fns := make([]func(stream.Event), 0, len(r.eventSubs))
	for _, fn := range r.eventSubs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (r *Runner) publishPartial(text string) {
	r.subMu.Lock()
	fns := make([]func(string), 0, len(r.partialSubs))
	for _, fn := range r.partialSubs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(text)
	}
}

// kill forcibly terminates the current process and every descendant, if any.
func (r *Runner) kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return
	}
	pid := r.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = r.cmd.Process.Kill()
}
