package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mahira-clipper/internal/config"
	"mahira-clipper/internal/diagnostics"
	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

var errChecksFailed = errors.New("some checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "check the interpreter, worker script, ffmpeg and projects folder",
	Args:  cobra.NoArgs,
	RunE:  doDoctor,
}

func doDoctor(cmd *cobra.Command, _ []string) error {
	report := diagnostics.NewChecker().Run(cmd.Context(), diagnostics.Target{
		Interpreter:  config.String(loadConfig(), "worker", "interpreter"),
		Candidates:   worker.DefaultCandidates(),
		WorkerScript: paths.WorkerScript,
		ProjectsDir:  paths.ProjectsDir,
	})
	printReport(cmd.OutOrStdout(), report)
	if report.HasFailures {
		return errChecksFailed
	}
	return nil
}

func printReport(out io.Writer, report domain.DiagnosticReport) {
	fmt.Fprintln(out, titleStyle.Render("Diagnostics"))
	for _, item := range report.Items {
		mark := okStyle.Render("PASS")
		if item.Status == domain.DiagnosticStatusFail {
			mark = errorStyle.Render("FAIL")
		}
		fmt.Fprintf(out, "%s  %s: %s\n", mark, item.Name, item.Message)
		if item.Hint != "" && item.Status == domain.DiagnosticStatusFail {
			fmt.Fprintln(out, mutedStyle.Render("      "+item.Hint))
		}
	}
}
