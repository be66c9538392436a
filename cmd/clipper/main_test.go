package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		arg   string
		key   string
		value any
	}{
		{"clip.num_clips=3", "clip.num_clips", float64(3)},
		{"worker.interpreter=python3", "worker.interpreter", "python3"},
		{"groq.api_key = gsk_abc ", "groq.api_key", "gsk_abc"},
		{"ui.compact=true", "ui.compact", true},
		{"ui.tags=[a, 2]", "ui.tags", []any{"a", float64(2)}},
		{"whisper.language=", "whisper.language", ""},
		{"note=#not-a-comment", "note", "#not-a-comment"},
		{"groq.api_key=0123456", "groq.api_key", "0123456"},
		{"gemini.api_key=1e5", "gemini.api_key", "1e5"},
		{"whisper.language=123", "whisper.language", "123"},
		{"clip.label:=0042", "clip.label", "0042"},
		{"clip.tags := [a, b]", "clip.tags", "[a, b]"},
		{"clip.label='0042'", "clip.label", "0042"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			key, value, err := parseAssignment(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseAssignmentRejects(t *testing.T) {
	for _, arg := range []string{"novalue", "=3", "a..b=1", ".a=1", ":=3"} {
		_, _, err := parseAssignment(arg)
		assert.Error(t, err, arg)
	}
}

func TestNest(t *testing.T) {
	got := nest([]string{"clip", "num_clips"}, float64(4))
	assert.Equal(t, map[string]any{"clip": map[string]any{"num_clips": float64(4)}}, got)
}

func TestLoadJobYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`url: https://youtu.be/x
project_name: demo
num_clips: 3
style_key: bold
`), 0o644))

	job, err := loadJob(yamlPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/x", job.URL)
	assert.Equal(t, "demo", job.ProjectName)
	assert.Equal(t, 3, job.NumClips)
	require.NotNil(t, job.StyleKey)
	assert.Equal(t, "bold", *job.StyleKey)

	job, err = loadJob("-", strings.NewReader(`{"file": "/tmp/in.mp4", "max_dur": 60}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.mp4", job.File)
	assert.Equal(t, 60, job.MaxDuration)
	assert.Nil(t, job.StyleKey)

	_, err = loadJob(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func shSupervisor(t *testing.T, script string) *worker.Supervisor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o644))
	return worker.NewSupervisor(worker.Options{
		Interpreter: "sh",
		WorkerDir:   dir,
		Script:      "run.sh",
		Env:         []string{"PATH=" + os.Getenv("PATH")},
		Logger:      logger,
	})
}

func TestRunJobSucceeds(t *testing.T) {
	sup := shSupervisor(t, `read job
printf '{"event":"project_created","name":"Demo"}\n'
printf '{"event":"progress","step":"download","pct":100}\n'
printf '{"event":"done","final_folder":"/tmp/out","clips":[{"title":"Hook"}]}\n'
`)

	var out bytes.Buffer
	final := runJob(context.Background(), sup, domain.JobDescriptor{URL: "https://youtu.be/x"}, &out, false)

	assert.Equal(t, domain.JobStatusSucceeded, final.Status)
	assert.Equal(t, "Demo", final.ProjectName)
	assert.Equal(t, "/tmp/out", final.FinalFolder)
	assert.Contains(t, out.String(), "Demo")
	assert.Contains(t, out.String(), "Hook")
}

func TestRunJobJSONOutput(t *testing.T) {
	sup := shSupervisor(t, `read job
printf '{"event":"progress","step":"detect","pct":10}\n'
exit 2
`)

	var out bytes.Buffer
	final := runJob(context.Background(), sup, domain.JobDescriptor{URL: "https://youtu.be/x"}, &out, true)

	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, "worker exited with code 2", final.Error)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"event":"progress","step":"detect","pct":10}`, lines[0])
	assert.JSONEq(t, `{"event":"error","msg":"worker exited with code 2"}`, lines[1])
}

func TestRunJobCancelStopsWorker(t *testing.T) {
	sup := shSupervisor(t, `read job
printf '{"event":"progress","step":"download","pct":5}\n'
exec sleep 30
`)

	// An interrupt that already happened still stops the worker cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final := runJob(ctx, sup, domain.JobDescriptor{URL: "https://youtu.be/x"}, io.Discard, false)

	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, worker.StoppedMessage, final.Error)
}
