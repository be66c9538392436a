package domain

import "time"

// Diagnostic item ids. The UI keys its fix buttons on these.
const (
	DiagnosticInterpreter  = "interpreter"
	DiagnosticWorkerScript = "worker_script"
	DiagnosticFFmpeg       = "tool_ffmpeg"
	DiagnosticProjectsDir  = "projects_dir"
)

type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is the outcome of one environment check. Fixable marks
// failures the app can try to repair itself.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
	Fixable bool             `json:"fixable,omitempty"`
}

func (i DiagnosticItem) Failed() bool {
	return i.Status == DiagnosticStatusFail
}

// DiagnosticReport is one full run of the environment checks.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// NewDiagnosticReport stamps items with the current time and failure summary.
func NewDiagnosticReport(items []DiagnosticItem) DiagnosticReport {
	report := DiagnosticReport{GeneratedAt: time.Now().UTC(), Items: items}
	for _, item := range items {
		if item.Failed() {
			report.HasFailures = true
			break
		}
	}
	return report
}

// Item returns the item with id.
func (r DiagnosticReport) Item(id string) (DiagnosticItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DiagnosticItem{}, false
}
