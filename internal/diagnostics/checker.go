package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

// Target names what the worker needs on this machine.
type Target struct {
	// Interpreter is a configured override; empty means probe Candidates.
	Interpreter  string
	Candidates   []string
	WorkerScript string
	ProjectsDir  string
}

// System is the slice of the host the checks touch. Nil fields use the real OS.
type System struct {
	Probe      worker.ProbeFunc
	LookPath   func(string) (string, error)
	Stat       func(string) (os.FileInfo, error)
	MkdirAll   func(string, os.FileMode) error
	CreateTemp func(dir, pattern string) (*os.File, error)
	Remove     func(string) error
}

func (s System) withDefaults() System {
	if s.Probe == nil {
		s.Probe = worker.VersionProbe
	}
	if s.LookPath == nil {
		s.LookPath = exec.LookPath
	}
	if s.Stat == nil {
		s.Stat = os.Stat
	}
	if s.MkdirAll == nil {
		s.MkdirAll = os.MkdirAll
	}
	if s.CreateTemp == nil {
		s.CreateTemp = os.CreateTemp
	}
	if s.Remove == nil {
		s.Remove = os.Remove
	}
	return s
}

// Checker verifies the worker can run: interpreter, entrypoint, ffmpeg and a
// writable projects folder.
type Checker struct {
	sys System
}

func NewChecker() *Checker {
	return NewCheckerWith(System{})
}

// NewCheckerWith builds a checker over sys.
func NewCheckerWith(sys System) *Checker {
	return &Checker{sys: sys.withDefaults()}
}

// Run executes all checks concurrently. Item order is fixed.
func (c *Checker) Run(ctx context.Context, target Target) domain.DiagnosticReport {
	checks := []func(context.Context) domain.DiagnosticItem{
		func(ctx context.Context) domain.DiagnosticItem { return c.checkInterpreter(ctx, target) },
		func(context.Context) domain.DiagnosticItem { return c.checkWorkerScript(target.WorkerScript) },
		func(context.Context) domain.DiagnosticItem { return c.checkFFmpeg() },
		func(context.Context) domain.DiagnosticItem { return c.checkProjectsDir(target.ProjectsDir) },
	}

	items := make([]domain.DiagnosticItem, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			items[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return domain.NewDiagnosticReport(items)
}

func pass(id, name, msg string) domain.DiagnosticItem {
	return domain.DiagnosticItem{ID: id, Name: name, Status: domain.DiagnosticStatusPass, Message: msg}
}

func fail(id, name, msg, hint string) domain.DiagnosticItem {
	return domain.DiagnosticItem{ID: id, Name: name, Status: domain.DiagnosticStatusFail, Message: msg, Hint: hint}
}

func (c *Checker) checkInterpreter(ctx context.Context, target Target) domain.DiagnosticItem {
	const name = "Python"

	candidates := target.Candidates
	if target.Interpreter != "" {
		candidates = []string{target.Interpreter}
	}

	found, ok := worker.FindInterpreter(ctx, candidates, c.sys.Probe)
	if !ok {
		item := fail(domain.DiagnosticInterpreter, name,
			fmt.Sprintf("No working Python interpreter among: %s", strings.Join(candidates, ", ")),
			"Install Python 3 and make sure it is on PATH, or set worker.interpreter in settings.")
		// A broken override is a settings problem, not a missing install.
		item.Fixable = target.Interpreter == ""
		return item
	}
	return pass(domain.DiagnosticInterpreter, name, "Using "+found)
}

func (c *Checker) checkWorkerScript(script string) domain.DiagnosticItem {
	const name = "Worker script"

	info, err := c.sys.Stat(script)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail(domain.DiagnosticWorkerScript, name,
			"Worker script does not exist: "+script,
			"Reinstall the app so the pipeline folder sits next to the executable.")
	case err != nil:
		return fail(domain.DiagnosticWorkerScript, name,
			"Cannot access worker script: "+script,
			"Check permissions for the pipeline folder.")
	case info.IsDir():
		return fail(domain.DiagnosticWorkerScript, name, "Worker script is a directory: "+script, "")
	default:
		return pass(domain.DiagnosticWorkerScript, name, "Found at "+script)
	}
}

// checkFFmpeg looks for ffmpeg on PATH; the worker shells out to it for every cut.
func (c *Checker) checkFFmpeg() domain.DiagnosticItem {
	path, err := c.sys.LookPath("ffmpeg")
	if err != nil {
		item := fail(domain.DiagnosticFFmpeg, "ffmpeg",
			"ffmpeg not found in PATH",
			"Install ffmpeg and make sure it is on PATH before starting a job.")
		item.Fixable = true
		return item
	}
	return pass(domain.DiagnosticFFmpeg, "ffmpeg", "Found at "+path)
}

// checkProjectsDir creates the projects folder if needed and proves it is writable.
func (c *Checker) checkProjectsDir(dir string) domain.DiagnosticItem {
	const name = "Projects directory"

	if strings.TrimSpace(dir) == "" {
		return fail(domain.DiagnosticProjectsDir, name, "Projects directory is empty.", "")
	}

	if err := c.sys.MkdirAll(dir, 0o755); err != nil {
		item := fail(domain.DiagnosticProjectsDir, name,
			"Cannot create projects directory: "+dir,
			"Move the app to a writable location or adjust filesystem permissions.")
		item.Fixable = true
		return item
	}

	probe, err := c.sys.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fail(domain.DiagnosticProjectsDir, name,
			"Projects directory is not writable: "+dir,
			"The worker stores downloads and clips here; it must be writable.")
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = c.sys.Remove(probePath)

	return pass(domain.DiagnosticProjectsDir, name, "Writable directory: "+dir)
}
