package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"mahira-clipper/internal/config"
	"mahira-clipper/internal/diagnostics"
	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/jobs"
	clog "mahira-clipper/internal/log"
	"mahira-clipper/internal/projects"
	"mahira-clipper/internal/worker"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the frontend.
const (
	EventPipeline        = "pipeline-event"
	EventPipelineState   = "pipeline-state"
	EventProjectsChanged = "projects-changed"
)

var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video",
		Pattern:     "*.mp4;*.mkv;*.avi;*.mov;*.webm;*.m4v",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the worker supervisor, job tracking and UI runtime callbacks.
type App struct {
	Paths       config.Paths
	Store       config.Store
	Supervisor  *worker.Supervisor
	Tracker     *jobs.Tracker
	Projects    *projects.Catalog
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      *slog.Logger

	dispatcher *jobs.Dispatcher
	events     *jobs.EventBus

	// emit, openPath and install are swapped out in tests.
	emit     func(ctx context.Context, name string, data ...interface{})
	openPath func(path string) error
	install  *installer

	// runMu serializes job replacement: detach, start, reset and subscribe
	// run as one step.
	runMu sync.Mutex

	mu         sync.Mutex
	runtimeCtx context.Context
	stopWatch  context.CancelFunc
}

// New builds the application rooted at CLIPPER_HOME or the executable directory.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	// A .env next to the working directory may carry CLIPPER_HOME or CLIPPER_DEBUG.
	_ = godotenv.Load()

	logger := clog.New(os.Getenv(config.DebugEnv) != "")
	slog.SetDefault(logger)

	paths := config.ResolvePaths(config.DefaultRoot())
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return nil, fmt.Errorf("prepare app root: %w", err)
	}

	store := config.NewJSONStore(paths.ConfigFile)
	cfg, err := store.Get()
	if err != nil {
		logger.Warn("config unreadable, using defaults", "path", paths.ConfigFile, "error", err)
		cfg = config.Defaults()
	}

	supervisor := worker.NewSupervisor(worker.Options{
		Interpreter: config.String(cfg, "worker", "interpreter"),
		WorkerDir:   paths.WorkerDir,
		Script:      paths.WorkerScript,
		Logger:      logger,
	})

	app := &App{
		Paths:      paths,
		Store:      store,
		Supervisor: supervisor,
		Tracker:    jobs.NewTracker(),
		Projects:   projects.NewCatalog(paths.ProjectsDir, paths.WorkerDir, logger),
		assets:     assets,
		checker:    diagnostics.NewChecker(),
		logger:     logger,
		dispatcher: jobs.NewDispatcher(),
		events:     jobs.NewEventBus(1000),
	}
	app.Diagnostics = app.runDiagnostics(context.Background(), cfg)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Mahira Clipper",
		Width:       1100,
		Height:      740,
		MinWidth:    900,
		MinHeight:   600,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and starts watching projects.
func (a *App) Startup(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.runtimeCtx = ctx
	a.stopWatch = cancel
	a.mu.Unlock()

	go func() {
		err := a.Projects.Watch(watchCtx, func() { a.publish(EventProjectsChanged) })
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log().Warn("projects watcher stopped", "error", err)
		}
	}()
}

// Shutdown kills a live worker and detaches from the UI runtime.
func (a *App) Shutdown(context.Context) {
	a.runMu.Lock()
	a.dispatcher.Unsubscribe()
	a.Supervisor.Stop()
	a.runMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}
	a.runtimeCtx = nil
}

// GetConfig returns the stored config merged over defaults.
func (a *App) GetConfig() (map[string]any, error) {
	cfg, err := a.Store.Get()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig merges partial into the stored config, then refreshes diagnostics.
func (a *App) SaveConfig(partial map[string]any) (map[string]any, error) {
	merged, err := a.Store.Save(partial)
	if err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}

	a.Supervisor.SetInterpreter(config.String(merged, "worker", "interpreter"))
	a.refreshDiagnostics(merged)
	return merged, nil
}

// GetProjects lists worker-created projects, newest first.
func (a *App) GetProjects() ([]domain.Project, error) {
	return a.Projects.List()
}

// GetProject loads one project record.
func (a *App) GetProject(id string) (domain.Project, error) {
	return a.Projects.Get(id)
}

// DeleteProject removes one project folder.
func (a *App) DeleteProject(id string) error {
	return a.Projects.Delete(id)
}

// RunPipeline starts a worker for job, replacing any live run, and returns
// the fresh job snapshot. Progress arrives as pipeline-event and pipeline-state.
func (a *App) RunPipeline(job domain.JobDescriptor) (domain.Job, error) {
	if err := job.Validate(); err != nil {
		return domain.Job{}, err
	}

	cfg, err := a.Store.Get()
	if err != nil {
		a.log().Warn("config unreadable, using defaults", "error", err)
		cfg = config.Defaults()
	}
	job = config.ApplyJobDefaults(job, cfg)

	a.runMu.Lock()
	defer a.runMu.Unlock()

	// Detach first so no event of the previous run reaches the fresh tracker state.
	a.dispatcher.Unsubscribe()

	run := a.Supervisor.Start(context.Background(), job)
	jobID := run.ID()
	a.Tracker.Reset(jobID)
	a.log().Info("pipeline started", "job_id", jobID, "url", job.URL, "file", job.File)
	a.publish(EventPipelineState, a.Tracker.Current())

	a.dispatcher.Subscribe(run, func(ev worker.Event) {
		a.handleEvent(jobID, ev)
	})
	return a.Tracker.Current(), nil
}

// StopPipeline kills the live worker. The run then reports "worker stopped".
func (a *App) StopPipeline() {
	a.Supervisor.Stop()
}

// PipelineState returns the current job snapshot.
func (a *App) PipelineState() domain.Job {
	return a.Tracker.Current()
}

// PipelineEvents returns all events with sequence greater than sinceSeq.
func (a *App) PipelineEvents(sinceSeq int64) []jobs.Entry {
	return a.events.Since(sinceSeq)
}

// PipelineLastSeq returns the newest history sequence, so a UI that just
// attached can poll PipelineEvents from there.
func (a *App) PipelineLastSeq() int64 {
	return a.events.LastSeq()
}

// ClearPipeline returns a finished job to idle. It refuses while a worker runs.
func (a *App) ClearPipeline() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.Tracker.IsRunning() {
		return fmt.Errorf("a job is still running")
	}
	a.Tracker.Clear()
	a.publish(EventPipelineState, a.Tracker.Current())
	return nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads config and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	cfg, err := a.Store.Get()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load config: %w", err)
	}
	return a.refreshDiagnostics(cfg), nil
}

// PickVideoFile opens a native file dialog for a local source video.
func (a *App) PickVideoFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video file",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenFolder opens path in the file manager. A missing path falls back to
// its parent, then to the projects folder.
func (a *App) OpenFolder(path string) error {
	target := resolveFolder(path, a.Paths.ProjectsDir)
	if target == "" {
		return fmt.Errorf("folder path is empty")
	}
	return a.open(target)
}

// OpenProjectsFolder opens the projects folder once the worker has created it.
func (a *App) OpenProjectsFolder() error {
	if _, err := os.Stat(a.Paths.ProjectsDir); err != nil {
		return nil
	}
	return a.open(a.Paths.ProjectsDir)
}

// OpenClipFile opens a rendered clip with the platform default handler.
func (a *App) OpenClipFile(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		return fmt.Errorf("clip path is empty")
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("resolve clip path: %w", err)
	}
	return a.open(target)
}

// OpenURL opens an http(s) or mailto link in the system browser.
func (a *App) OpenURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "mailto":
	default:
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}
	wailsruntime.BrowserOpenURL(ctx, u.String())
	return nil
}

// handleEvent feeds one forwarded worker event to the tracker, history and UI.
// Events of a run the tracker no longer follows are dropped.
func (a *App) handleEvent(jobID string, ev worker.Event) {
	changed, ok := a.Tracker.ApplyFor(jobID, ev)
	if !ok {
		a.log().Debug("dropping event of superseded run", "job_id", jobID, "kind", ev.Kind())
		return
	}
	entry := a.events.Publish(jobID, ev)

	if entry.Record != nil {
		a.publish(EventPipeline, entry.Record)
	} else {
		a.log().Warn("pipeline event has no record", "seq", entry.Seq, "kind", ev.Kind())
	}
	if changed {
		a.publish(EventPipelineState, a.Tracker.Current())
	}
	if worker.IsTerminal(ev) {
		a.log().Info("pipeline finished", "job_id", jobID, "kind", ev.Kind())
	}
}

// publish emits a runtime push notification when the UI is attached.
func (a *App) publish(name string, data ...interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	emit := a.emit
	a.mu.Unlock()

	if ctx == nil {
		return
	}
	if emit == nil {
		emit = wailsruntime.EventsEmit
	}
	emit(ctx, name, data...)
}

func (a *App) refreshDiagnostics(cfg map[string]any) domain.DiagnosticReport {
	report := a.runDiagnostics(context.Background(), cfg)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Diagnostics = report
	return report
}

func (a *App) runDiagnostics(ctx context.Context, cfg map[string]any) domain.DiagnosticReport {
	if a.checker == nil {
		return domain.DiagnosticReport{}
	}
	return a.checker.Run(ctx, diagnostics.Target{
		Interpreter:  config.String(cfg, "worker", "interpreter"),
		Candidates:   worker.DefaultCandidates(),
		WorkerScript: a.Paths.WorkerScript,
		ProjectsDir:  a.Paths.ProjectsDir,
	})
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) open(path string) error {
	if a.openPath != nil {
		return a.openPath(path)
	}
	return openInFileManager(path)
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

// resolveFolder picks path if it exists, else its parent, else fallback.
func resolveFolder(path, fallback string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	resolved, err := filepath.Abs(trimmed)
	if err != nil {
		resolved = filepath.Clean(trimmed)
	}

	if _, err := os.Stat(resolved); err == nil {
		return resolved
	}
	if parent := filepath.Dir(resolved); parent != resolved {
		if _, err := os.Stat(parent); err == nil {
			return parent
		}
	}
	return fallback
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
