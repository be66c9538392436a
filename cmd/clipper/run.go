package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mahira-clipper/internal/config"
	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/jobs"
	clog "mahira-clipper/internal/log"
	"mahira-clipper/internal/worker"
)

var (
	flagJobFile string
	flagURL     string
	flagFile    string
	flagJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run one clipping job through the pipeline worker",
	Long: `Run reads a job descriptor (YAML or JSON, "-" for stdin), fills empty
settings from api_config.json and streams worker progress until the job
finishes. Ctrl-C stops the worker.`,
	RunE: doRun,
}

func init() {
	runCmd.Flags().StringVar(&flagJobFile, "job", "", "job descriptor file, - reads stdin")
	runCmd.Flags().StringVar(&flagURL, "url", "", "source video url, overrides the job file")
	runCmd.Flags().StringVar(&flagFile, "file", "", "local source video, overrides the job file")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "print raw worker events as NDJSON")
}

func doRun(cmd *cobra.Command, _ []string) error {
	var job domain.JobDescriptor
	if flagJobFile != "" {
		var err error
		job, err = loadJob(flagJobFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if flagURL != "" || flagFile != "" {
		job.URL, job.File = flagURL, flagFile
	}
	if err := job.Validate(); err != nil {
		return err
	}
	cfg := loadConfig()
	job = config.ApplyJobDefaults(job, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = clog.ContextAttrs(ctx, slog.Group("clipper",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	supervisor := worker.NewSupervisor(worker.Options{
		Interpreter: config.String(cfg, "worker", "interpreter"),
		WorkerDir:   paths.WorkerDir,
		Script:      paths.WorkerScript,
		Logger:      logger,
	})

	final := runJob(ctx, supervisor, job, cmd.OutOrStdout(), flagJSON)
	if final.Status != domain.JobStatusSucceeded {
		return fmt.Errorf("job %s failed: %s", final.ID, final.Error)
	}
	return nil
}

// runJob supervises one worker run until it reports a result. Cancelling ctx
// stops the worker; the returned snapshot then carries the stop error.
func runJob(ctx context.Context, supervisor *worker.Supervisor, job domain.JobDescriptor, out io.Writer, jsonOut bool) domain.Job {
	tracker := jobs.NewTracker()
	dispatcher := jobs.NewDispatcher()
	defer dispatcher.Unsubscribe()

	run := supervisor.Start(ctx, job)
	tracker.Reset(run.ID())

	sub := dispatcher.Subscribe(run, func(ev worker.Event) {
		tracker.Apply(ev)
		if jsonOut {
			if raw, err := worker.Wire(ev); err == nil {
				fmt.Fprintln(out, string(raw))
			}
			return
		}
		if line := renderEvent(ev); line != "" {
			fmt.Fprintln(out, line)
		}
	})

	select {
	case <-sub.Drained():
	case <-ctx.Done():
		logger.InfoContext(ctx, "interrupted, stopping worker", "job_id", run.ID())
		supervisor.Stop()
		<-sub.Drained()
	}

	final := tracker.Current()
	if !jsonOut {
		fmt.Fprintln(out, renderSummary(final))
	}
	return final
}

// loadJob decodes a job descriptor from path, or from stdin when path is "-".
// JSON descriptors parse as YAML too.
func loadJob(path string, stdin io.Reader) (domain.JobDescriptor, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.JobDescriptor{}, fmt.Errorf("opening job file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}

	var job domain.JobDescriptor
	if err := yaml.NewDecoder(r).Decode(&job); err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("parsing job %s: %w", path, err)
	}
	return job, nil
}
