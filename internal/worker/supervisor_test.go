package worker_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

const waitTimeout = 10 * time.Second

// newSupervisor installs script as the worker entrypoint and runs it with sh.
func newSupervisor(t *testing.T, script string) *worker.Supervisor {
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
		Logger:      discardLogger(),
	})
}

// drain collects every remaining event until the run's stream closes.
func drain(t *testing.T, run *worker.Run) []worker.Event {
	t.Helper()
	var got []worker.Event
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return got
			}
			got = append(got, worker.Bare(ev))
		case <-timeout:
			t.Fatalf("run %s did not finish, got %v", run.ID(), got)
		}
	}
}

func next(t *testing.T, run *worker.Run) worker.Event {
	t.Helper()
	select {
	case ev, ok := <-run.Events():
		require.True(t, ok, "stream closed early")
		return worker.Bare(ev)
	case <-time.After(waitTimeout):
		t.Fatal("no event")
		return nil
	}
}

func demoJob(name string) domain.JobDescriptor {
	return domain.JobDescriptor{URL: "https://youtu.be/x", ProjectName: name, NumClips: 3, MinDuration: 30, MaxDuration: 60}
}

func TestRunFailsWithExitCode(t *testing.T) {
	sup := newSupervisor(t, `read job
printf '{"event":"progress","step":"download","pct":50}\n'
exit 1
`)

	run := sup.Start(context.Background(), demoJob("demo"))
	got := drain(t, run)

	assert.Equal(t, []worker.Event{
		worker.ProgressEvent{Step: domain.PhaseDownload, Pct: 50},
		worker.ErrorEvent{Msg: "worker exited with code 1"},
	}, got)
	<-run.Done()
	assert.Equal(t, 1, run.ExitCode())
	assert.Nil(t, sup.Current())
}

func TestRunDoneIsFinal(t *testing.T) {
	sup := newSupervisor(t, `read job
printf '{"event":"done","project_id":"p-1","final_folder":"/out/p-1","clips":[{"title":"A"}]}\n'
printf '{"event":"log","msg":"after done"}\n'
printf '{"event":"error","msg":"late"}\n'
exit 3
`)

	run := sup.Start(context.Background(), demoJob("demo"))
	got := drain(t, run)

	assert.Equal(t, []worker.Event{
		worker.DoneEvent{ProjectID: "p-1", FinalFolder: "/out/p-1", Clips: []domain.Clip{{Title: "A"}}},
	}, got)
	<-run.Done()
	assert.Equal(t, 3, run.ExitCode())
}

func TestRunReassemblesSplitLines(t *testing.T) {
	sup := newSupervisor(t, `read job
printf '{"event":"log","msg":"hel'
sleep 0.1
printf 'lo"}\n'
printf 'stderr line\n' >&2
sleep 0.2
printf '{"event":"done","final_folder":"/out","clips":[]}\n'
`)

	got := drain(t, sup.Start(context.Background(), demoJob("demo")))

	require.NotEmpty(t, got)
	assert.Contains(t, got, worker.LogEvent{Msg: "hello", Level: worker.LevelInfo})
	assert.Contains(t, got, worker.LogEvent{Msg: "stderr line", Level: worker.LevelWarn})
	assert.Equal(t, worker.DoneEvent{FinalFolder: "/out", Clips: []domain.Clip{}}, got[len(got)-1])
}

func TestRunReceivesJobOnStdin(t *testing.T) {
	sup := newSupervisor(t, `[ -f run.sh ] || exit 9
read job
printf '%s\n' "$job" >&2
sleep 0.2
printf '{"event":"log","msg":"utf8=%s/%s"}\n' "$PYTHONUTF8" "$PYTHONIOENCODING"
printf '{"event":"done","final_folder":"/out","clips":[]}\n'
`)

	got := drain(t, sup.Start(context.Background(), demoJob("Podcast 12")))

	require.Len(t, got, 3)
	stdinEcho, ok := got[0].(worker.LogEvent)
	require.True(t, ok)
	assert.Equal(t, worker.LevelWarn, stdinEcho.Level)
	assert.Contains(t, stdinEcho.Msg, `"project_name":"Podcast 12"`)
	assert.Contains(t, stdinEcho.Msg, `"num_clips":3`)
	assert.Equal(t, worker.LogEvent{Msg: "utf8=1/utf-8", Level: worker.LevelInfo}, got[1])
	assert.IsType(t, worker.DoneEvent{}, got[2])
}

func TestRunExitZeroWithoutResult(t *testing.T) {
	sup := newSupervisor(t, "read job\nexit 0\n")

	got := drain(t, sup.Start(context.Background(), demoJob("demo")))

	require.Len(t, got, 1)
	errEv, ok := got[0].(worker.ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEv.Msg, "code 0")
}

const slowScript = `read job
case "$job" in
*'"project_name":"slow"'*)
	printf '{"event":"log","msg":"started"}\n'
	exec sleep 30
	;;
esac
printf '{"event":"done","final_folder":"/out/fast","clips":[]}\n'
`

func TestStartReplacesLiveRun(t *testing.T) {
	sup := newSupervisor(t, slowScript)

	first := sup.Start(context.Background(), demoJob("slow"))
	assert.Equal(t, worker.LogEvent{Msg: "started", Level: worker.LevelInfo}, next(t, first))

	second := sup.Start(context.Background(), demoJob("fast"))
	assert.NotEqual(t, first.ID(), second.ID())

	// The replaced run is killed and none of its remaining output surfaces.
	assert.Empty(t, drain(t, first))
	<-first.Done()

	assert.Equal(t, []worker.Event{
		worker.DoneEvent{FinalFolder: "/out/fast", Clips: []domain.Clip{}},
	}, drain(t, second))
}

func TestStopIsIdempotent(t *testing.T) {
	sup := newSupervisor(t, slowScript)
	sup.Stop()

	run := sup.Start(context.Background(), demoJob("slow"))
	assert.Same(t, run, sup.Current())
	assert.IsType(t, worker.LogEvent{}, next(t, run))

	sup.Stop()
	sup.Stop()

	assert.Equal(t, []worker.Event{worker.ErrorEvent{Msg: worker.StoppedMessage}}, drain(t, run))
	<-run.Done()
	assert.Equal(t, -1, run.ExitCode())
	assert.Nil(t, sup.Current())

	sup.Stop()
}

func TestStartReportsSpawnFailure(t *testing.T) {
	sup := worker.NewSupervisor(worker.Options{
		Interpreter: filepath.Join(t.TempDir(), "missing-python"),
		WorkerDir:   t.TempDir(),
		Script:      "run.py",
		Logger:      discardLogger(),
	})

	run := sup.Start(context.Background(), demoJob("demo"))
	got := drain(t, run)

	require.Len(t, got, 1)
	errEv, ok := got[0].(worker.ErrorEvent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(errEv.Msg, "cannot start worker"), errEv.Msg)
	assert.Equal(t, -1, run.ExitCode())
}

func TestCallerCancellationDoesNotKillWorker(t *testing.T) {
	sup := newSupervisor(t, `read job
sleep 0.2
printf '{"event":"done","final_folder":"/out","clips":[]}\n'
`)

	ctx, cancel := context.WithCancel(context.Background())
	run := sup.Start(ctx, demoJob("demo"))
	cancel()

	assert.Equal(t, []worker.Event{
		worker.DoneEvent{FinalFolder: "/out", Clips: []domain.Clip{}},
	}, drain(t, run))
}
