package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLineBuffer(t *testing.T) {
	var b worker.LineBuffer

	assert.Empty(t, b.Feed([]byte(`{"event":"log",`)))
	assert.Equal(t, 15, b.Pending())

	lines := b.Feed([]byte("\"msg\":\"hi\"}\r\n\n   \nsecond\npart"))
	assert.Equal(t, []string{`{"event":"log","msg":"hi"}`, "second"}, lines)
	assert.Equal(t, 4, b.Pending())

	assert.Equal(t, "part", b.Flush())
	assert.Zero(t, b.Pending())
	assert.Equal(t, "", b.Flush())
}

func TestDemuxSplitsChannels(t *testing.T) {
	var got []worker.Event
	d := worker.NewDemux(context.Background(), discardLogger(), func(ev worker.Event) {
		got = append(got, worker.Bare(ev))
	})

	_, err := d.Primary().Write([]byte("{\"event\":\"log\",\"msg\":\"hel"))
	require.NoError(t, err)
	_, err = d.Primary().Write([]byte("lo\"}\nnot json\n{\"event\":\"progress\",\"step\":\"download\",\"pct\":50}\n"))
	require.NoError(t, err)
	_, err = d.Diagnostic().Write([]byte("Traceback (most recent call last):\n  File \"run.py\""))
	require.NoError(t, err)
	_, err = d.Primary().Write([]byte(`{"event":"done","final_folder":"/x"`))
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, []worker.Event{
		worker.LogEvent{Msg: "hello", Level: worker.LevelInfo},
		worker.ProgressEvent{Step: domain.PhaseDownload, Pct: 50},
		worker.LogEvent{Msg: "Traceback (most recent call last):", Level: worker.LevelWarn},
		worker.LogEvent{Msg: `  File "run.py"`, Level: worker.LevelWarn},
	}, got)
}

func TestDemuxChunkBoundaryInvariance(t *testing.T) {
	stream := []byte("{\"event\":\"project_created\",\"name\":\"Talk\"}\n" +
		"{\"event\":\"progress\",\"step\":\"gemini\",\"pct\":12}\r\n" +
		"\n" +
		"{\"event\":\"log\",\"msg\":\"Memotong klip 1/5\"}\n" +
		"{\"event\":\"done\",\"final_folder\":\"/out\",\"clips\":[]}\n")

	decodeAll := func(chunks ...[]byte) []worker.Event {
		var got []worker.Event
		d := worker.NewDemux(context.Background(), discardLogger(), func(ev worker.Event) {
			got = append(got, worker.Bare(ev))
		})
		w := d.Primary()
		for _, c := range chunks {
			_, _ = w.Write(c)
		}
		d.Close()
		return got
	}

	whole := decodeAll(stream)
	require.Len(t, whole, 4)

	for i := 1; i < len(stream); i++ {
		assert.Equal(t, whole, decodeAll(stream[:i], stream[i:]), "split at %d", i)
	}

	bytewise := make([][]byte, len(stream))
	for i := range stream {
		bytewise[i] = stream[i : i+1]
	}
	assert.Equal(t, whole, decodeAll(bytewise...))
}

func TestDemuxKeepsWorkerLine(t *testing.T) {
	var got []worker.Event
	d := worker.NewDemux(context.Background(), discardLogger(), func(ev worker.Event) {
		got = append(got, ev)
	})

	line := `{"event":"done","final_folder":"/out","clips":[],"elapsed":12.5}`
	_, err := d.Primary().Write([]byte(line[:20]))
	require.NoError(t, err)
	_, err = d.Primary().Write([]byte(line[20:] + "\r\n"))
	require.NoError(t, err)
	_, err = d.Diagnostic().Write([]byte("warning: slow disk\n"))
	require.NoError(t, err)
	d.Close()

	require.Len(t, got, 2)
	raw, err := worker.Wire(got[0])
	require.NoError(t, err)
	assert.Equal(t, line, string(raw))

	raw, err = worker.Wire(got[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"log","msg":"warning: slow disk","level":"warn"}`, string(raw))
}
