package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/samber/lo"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

const installCommandTimeout = 45 * time.Minute

// packageManager is one way to install a tool: the manager binary and the steps to run.
type packageManager struct {
	name  string
	steps [][]string
}

// InstallOrFixDiagnostic repairs one failed diagnostic item, then reruns all checks.
// Passing items are left alone.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}
	switch id {
	case domain.DiagnosticFFmpeg, domain.DiagnosticInterpreter, domain.DiagnosticProjectsDir:
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if item, ok := a.GetDiagnostics().Item(id); ok && !item.Failed() {
		return a.RefreshDiagnostics()
	}

	ctx := context.Background()
	var fixErr error
	switch id {
	case domain.DiagnosticFFmpeg:
		fixErr = a.installTools().installFFmpeg(ctx)
	case domain.DiagnosticInterpreter:
		fixErr = a.installTools().installPython(ctx)
	case domain.DiagnosticProjectsDir:
		if err := os.MkdirAll(a.Paths.ProjectsDir, 0o755); err != nil {
			fixErr = fmt.Errorf("create projects directory %s: %w", a.Paths.ProjectsDir, err)
		}
	}

	report, err := a.RefreshDiagnostics()
	if fixErr != nil {
		a.log().Warn("diagnostic fix failed", "item", id, "error", fixErr)
		return report, fixErr
	}
	return report, err
}

func (a *App) installTools() *installer {
	if a.install != nil {
		return a.install
	}
	return newInstaller(a.log())
}

// installPlan lists package managers that can install tool on goos, in preference order.
func installPlan(tool, goos string) []packageManager {
	wingetIDs := map[string]string{
		"ffmpeg": "Gyan.FFmpeg",
		"python": "Python.Python.3.12",
	}
	distroPackages := map[string]string{
		"ffmpeg": "ffmpeg",
		"python": "python3",
	}

	switch goos {
	case "windows":
		return []packageManager{
			{name: "winget", steps: [][]string{
				{"winget", "install", "--id", wingetIDs[tool], "--exact", "--accept-source-agreements", "--accept-package-agreements"},
			}},
			{name: "choco", steps: [][]string{{"choco", "install", tool, "-y"}}},
			{name: "scoop", steps: [][]string{{"scoop", "install", tool}}},
		}
	case "darwin":
		return []packageManager{
			{name: "brew", steps: [][]string{{"brew", "install", tool}}},
		}
	default:
		pkg := distroPackages[tool]
		return []packageManager{
			{name: "apt-get", steps: [][]string{
				{"apt-get", "update"},
				{"apt-get", "install", "-y", pkg},
			}},
			{name: "dnf", steps: [][]string{{"dnf", "install", "-y", pkg}}},
			{name: "pacman", steps: [][]string{{"pacman", "-Sy", "--noconfirm", tool}}},
			{name: "zypper", steps: [][]string{{"zypper", "install", "-y", pkg}}},
			{name: "brew", steps: [][]string{{"brew", "install", tool}}},
		}
	}
}

// installer drives the host package managers.
type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, argv []string) ([]byte, error)
	probe    worker.ProbeFunc
	logger   *slog.Logger
}

func newInstaller(logger *slog.Logger) *installer {
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, argv []string) ([]byte, error) {
			return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
		},
		probe:  worker.VersionProbe,
		logger: logger,
	}
}

func (i *installer) installFFmpeg(ctx context.Context) error {
	if err := i.install(ctx, "ffmpeg"); err != nil {
		return fmt.Errorf("install ffmpeg: %w", err)
	}
	if !i.available("ffmpeg") {
		return fmt.Errorf("ffmpeg installed but not found on PATH; restart the app")
	}
	return nil
}

func (i *installer) installPython(ctx context.Context) error {
	if err := i.install(ctx, "python"); err != nil {
		return fmt.Errorf("install python: %w", err)
	}
	if _, ok := worker.FindInterpreter(ctx, worker.Candidates(i.goos), i.probe); !ok {
		return fmt.Errorf("python installed but no interpreter answers on PATH; restart the app")
	}
	return nil
}

// install tries each available package manager until one succeeds.
func (i *installer) install(ctx context.Context, tool string) error {
	managers := lo.Filter(installPlan(tool, i.goos), func(m packageManager, _ int) bool {
		return i.available(m.name)
	})
	if len(managers) == 0 {
		return fmt.Errorf("no supported package manager found for %s", i.goos)
	}

	var errs []error
	for _, m := range managers {
		i.logger.InfoContext(ctx, "installing tool", "tool", tool, "manager", m.name)
		err := i.runSteps(ctx, m.steps)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return errors.Join(errs...)
}

func (i *installer) runSteps(ctx context.Context, steps [][]string) error {
	for _, step := range steps {
		if err := i.runElevated(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// runElevated runs argv as is, then through each elevation helper until one works.
func (i *installer) runElevated(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	var errs []error
	for _, candidate := range elevationCandidates(argv, i.goos, i.available) {
		err := i.runOne(ctx, candidate)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (i *installer) runOne(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, installCommandTimeout)
	defer cancel()

	output, err := i.run(ctx, argv)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", strings.Join(argv, " "), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", strings.Join(argv, " "), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", strings.Join(argv, " "), err, trimmed)
}

func (i *installer) available(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

// elevationCandidates returns argv plus pkexec and sudo variants for system package managers on Linux.
func elevationCandidates(argv []string, goos string, available func(string) bool) [][]string {
	candidates := [][]string{argv}
	if goos != "linux" || !requiresElevation(argv[0]) {
		return candidates
	}
	if available("pkexec") {
		candidates = append(candidates, append([]string{"pkexec"}, argv...))
	}
	if available("sudo") {
		candidates = append(candidates, append([]string{"sudo", "-n"}, argv...))
	}
	return candidates
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}
