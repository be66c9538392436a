package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"mahira-clipper/internal/domain"
	clog "mahira-clipper/internal/log"
)

// StoppedMessage is the terminal error reported for a run ended by Stop.
const StoppedMessage = "worker stopped"

const (
	eventBuffer = 64
	// waitDelay bounds how long Wait keeps reading pipes that grandchildren
	// (ffmpeg and friends) may still hold open after the worker died.
	waitDelay = 2 * time.Second
)

// utf8Env forces UTF-8 stdio in the Python worker regardless of host locale.
var utf8Env = []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"}

// Options configures how the supervisor launches workers.
type Options struct {
	// WorkerDir is the worker's working directory.
	WorkerDir string
	// Script is the worker entrypoint. Relative paths resolve against WorkerDir.
	Script string
	// Interpreter skips probing when set.
	Interpreter string
	// Candidates are the interpreter commands tried in order when Interpreter
	// is empty. Nil means DefaultCandidates.
	Candidates []string
	// Probe checks one candidate. Nil means VersionProbe.
	Probe ProbeFunc
	// Env is the base environment; nil means the host environment.
	Env []string
	// Logger receives lifecycle records. Nil means slog.Default.
	Logger *slog.Logger
}

// Supervisor owns the single worker slot. Starting a job kills and detaches
// whatever run occupied the slot before.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	current *Run
}

// NewSupervisor creates a supervisor with an empty slot.
func NewSupervisor(opts Options) *Supervisor {
	if opts.Candidates == nil {
		opts.Candidates = DefaultCandidates()
	}
	if opts.Probe == nil {
		opts.Probe = VersionProbe
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{opts: opts, logger: logger}
}

// Start launches a worker for job and returns its event stream. A live
// previous run is killed without grace and detached, so none of its
// remaining output is delivered. Spawn failures arrive as an ErrorEvent.
func (s *Supervisor) Start(ctx context.Context, job domain.JobDescriptor) *Run {
	run := newRun(uuid.NewString())

	s.mu.Lock()
	prev := s.current
	s.current = run
	s.mu.Unlock()

	if prev != nil {
		s.logger.InfoContext(ctx, "replacing live worker", "previous_job_id", prev.ID(), "job_id", run.ID())
		prev.detach()
		prev.kill()
	}

	go s.execute(ctx, run, job)
	return run
}

// Stop kills the live worker, if any. It is safe to call repeatedly.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	run := s.current
	s.current = nil
	s.mu.Unlock()

	if run != nil {
		run.kill()
	}
}

// SetInterpreter overrides interpreter probing for later runs. An empty name
// restores probing.
func (s *Supervisor) SetInterpreter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Interpreter = name
}

// Current returns the run occupying the slot, or nil.
func (s *Supervisor) Current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// release frees the slot if run still holds it.
func (s *Supervisor) release(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == run {
		s.current = nil
	}
}

func (s *Supervisor) execute(parent context.Context, run *Run, job domain.JobDescriptor) {
	defer s.release(run)
	defer close(run.done)
	defer close(run.events)

	ctx := clog.WithJob(context.WithoutCancel(parent), run.ID())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !run.arm(cancel) {
		run.emit(ErrorEvent{Msg: StoppedMessage})
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		run.emit(ErrorEvent{Msg: fmt.Sprintf("encode job: %v", err)})
		return
	}

	interpreter := s.interpreter(runCtx)
	demux := NewDemux(ctx, s.logger, func(ev Event) { run.emit(ev) })

	cmd := exec.CommandContext(runCtx, interpreter, s.script())
	cmd.Dir = s.opts.WorkerDir
	cmd.Env = s.environ()
	cmd.Stdout = demux.Primary()
	cmd.Stderr = demux.Diagnostic()
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		run.emit(ErrorEvent{Msg: fmt.Sprintf("open worker stdin: %v", err)})
		return
	}

	if err := cmd.Start(); err != nil {
		if run.wasStopped() {
			run.emit(ErrorEvent{Msg: StoppedMessage})
			return
		}
		s.logger.ErrorContext(ctx, "worker spawn failed", "interpreter", interpreter, "error", err)
		run.emit(ErrorEvent{Msg: fmt.Sprintf(
			"cannot start worker with %q: %v\nMake sure Python is installed and on PATH.",
			interpreter, err,
		)})
		return
	}
	s.logger.InfoContext(ctx, "worker started", "pid", cmd.Process.Pid, "interpreter", interpreter, "dir", cmd.Dir)

	// The whole job is one line; closing stdin tells the worker no more input follows.
	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		s.logger.WarnContext(ctx, "writing job to worker stdin", "error", err)
	}
	if err := stdin.Close(); err != nil {
		s.logger.DebugContext(ctx, "closing worker stdin", "error", err)
	}

	waitErr := cmd.Wait()
	demux.Close()

	code := exitCode(cmd, waitErr)
	run.setExitCode(code)
	s.logger.InfoContext(ctx, "worker exited", "code", code, "stopped", run.wasStopped(), "error", waitErr)

	// emit drops these when the worker already reported done or error.
	switch {
	case run.wasStopped():
		run.emit(ErrorEvent{Msg: StoppedMessage})
	case code == 0:
		run.emit(ErrorEvent{Msg: "worker exited with code 0 without reporting a result"})
	default:
		run.emit(ErrorEvent{Msg: fmt.Sprintf("worker exited with code %d", code)})
	}
}

func (s *Supervisor) interpreter(ctx context.Context) string {
	s.mu.Lock()
	override := s.opts.Interpreter
	s.mu.Unlock()

	if override != "" {
		return override
	}
	name := ResolveInterpreter(ctx, s.opts.Candidates, s.opts.Probe)
	s.logger.DebugContext(ctx, "resolved interpreter", "name", name)
	return name
}

func (s *Supervisor) script() string {
	if s.opts.Script == "" || filepath.IsAbs(s.opts.Script) || s.opts.WorkerDir == "" {
		return s.opts.Script
	}
	return filepath.Join(s.opts.WorkerDir, s.opts.Script)
}

func (s *Supervisor) environ() []string {
	base := s.opts.Env
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+len(utf8Env))
	env = append(env, base...)
	return append(env, utf8Env...)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Run is the event stream of one supervised worker.
type Run struct {
	id     string
	events chan Event
	done   chan struct{}

	detached   chan struct{}
	detachOnce sync.Once

	sendMu   sync.Mutex
	terminal bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	exitCode int
}

func newRun(id string) *Run {
	return &Run{
		id:       id,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		detached: make(chan struct{}),
		exitCode: -1,
	}
}

// ID identifies the run.
func (r *Run) ID() string {
	return r.id
}

// Events yields worker events in arrival order. The channel closes when the
// worker is gone. At most one DoneEvent or ErrorEvent is ever delivered and it is the last.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Done is closed once the worker process has been reaped.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// ExitCode returns the worker exit code, or -1 when it was killed, never
// started or is still running.
func (r *Run) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// emit delivers ev unless a terminal event was already delivered or the run was detached.
func (r *Run) emit(ev Event) bool {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if r.terminal {
		return false
	}
	select {
	case <-r.detached:
		return false
	default:
	}

	select {
	case r.events <- ev:
	case <-r.detached:
		return false
	}
	if IsTerminal(ev) {
		r.terminal = true
	}
	return true
}

// detach drops all further output of the run.
func (r *Run) detach() {
	r.detachOnce.Do(func() { close(r.detached) })
}

// arm stores the kill switch. It returns false when the run was stopped before it started.
func (r *Run) arm(cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = cancel
	return !r.stopped
}

func (r *Run) kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Run) wasStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Run) setExitCode(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exitCode = code
}
