package worker_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want worker.Event
	}{
		{
			name: "log defaults to info",
			line: `{"event":"log","msg":"Downloading video"}`,
			want: worker.LogEvent{Msg: "Downloading video", Level: worker.LevelInfo},
		},
		{
			name: "log keeps level",
			line: `{"event":"log","msg":"slow network","level":"warn"}`,
			want: worker.LogEvent{Msg: "slow network", Level: worker.LevelWarn},
		},
		{
			name: "progress",
			line: `{"event":"progress","step":"transcribe","pct":42.5}`,
			want: worker.ProgressEvent{Step: domain.PhaseTranscribe, Pct: 42.5},
		},
		{
			name: "progress detect alias",
			line: `{"event":"progress","step":"detect","pct":10}`,
			want: worker.ProgressEvent{Step: domain.PhaseDetect, Pct: 10},
		},
		{
			name: "progress clamps pct",
			line: `{"event":"progress","step":"cut","pct":140}`,
			want: worker.ProgressEvent{Step: domain.PhaseCut, Pct: 100},
		},
		{
			name: "project created",
			line: `{"event":"project_created","project_id":"p-1","name":"Podcast 12"}`,
			want: worker.ProjectCreatedEvent{ProjectID: "p-1", Name: "Podcast 12"},
		},
		{
			name: "clips",
			line: `{"event":"clips","clips":[{"title":"Hook","start_time":12.5,"end_time":48,"viral_score":8.5}]}`,
			want: worker.ClipsEvent{Clips: []domain.Clip{{Title: "Hook", StartTime: 12.5, EndTime: 48, ViralScore: 8.5}}},
		},
		{
			name: "done",
			line: `{"event":"done","final_folder":"/out/p-1","clips":[]}`,
			want: worker.DoneEvent{FinalFolder: "/out/p-1", Clips: []domain.Clip{}},
		},
		{
			name: "error",
			line: `{"event":"error","msg":"ffmpeg not found"}`,
			want: worker.ErrorEvent{Msg: "ffmpeg not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := worker.Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	_, err := worker.Decode([]byte(`{"msg":"no kind"}`))
	require.ErrorIs(t, err, worker.ErrMissingKind)

	_, err = worker.Decode([]byte(`{"event":"telemetry","msg":"x"}`))
	require.ErrorIs(t, err, worker.ErrUnknownKind)

	_, err = worker.Decode([]byte(`{"event":"progress","step":"upload","pct":1}`))
	require.Error(t, err)

	_, err = worker.Decode([]byte(`[INFO] not json`))
	require.Error(t, err)

	ev, err := worker.Decode([]byte(`{"event":"progress","step":"cut","pct":"half"}`))
	require.Error(t, err)
	require.Nil(t, ev)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, worker.IsTerminal(worker.DoneEvent{}))
	assert.True(t, worker.IsTerminal(worker.ErrorEvent{}))
	assert.False(t, worker.IsTerminal(worker.LogEvent{}))
	assert.False(t, worker.IsTerminal(worker.ProgressEvent{}))
	assert.False(t, worker.IsTerminal(worker.ClipsEvent{}))
	assert.False(t, worker.IsTerminal(worker.ProjectCreatedEvent{}))
}

func TestEncode(t *testing.T) {
	raw, err := worker.Encode(worker.ErrorEvent{Msg: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","msg":"boom"}`, string(raw))

	raw, err = worker.Encode(worker.ProgressEvent{Step: domain.PhaseDetect, Pct: 30})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"progress","step":"gemini","pct":30}`, string(raw))

	// Encoded events are valid worker lines.
	back, err := worker.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, worker.ProgressEvent{Step: domain.PhaseDetect, Pct: 30}, back)
}

const clipsLine = `{"event":"clips","clips":[{"id":"c1","title":"a","start_time":0,"end_time":42.5,` +
	`"start_time_ref":"intro","end_time_ref":"outro","is_approved":false,"hashtags":[]}]}`

func TestWireForwardsWorkerLine(t *testing.T) {
	ev, err := worker.DecodeLine([]byte(clipsLine))
	require.NoError(t, err)

	clips, ok := ev.(worker.ClipsEvent)
	require.True(t, ok)
	require.Len(t, clips.Clips, 1)
	assert.Equal(t, "intro", clips.Clips[0].StartTimeRef)
	assert.Equal(t, "outro", clips.Clips[0].EndTimeRef)

	raw, err := worker.Wire(ev)
	require.NoError(t, err)
	assert.Equal(t, clipsLine, string(raw))

	// Synthesized events have no worker line and fall back to Encode.
	raw, err = worker.Wire(worker.ErrorEvent{Msg: worker.StoppedMessage})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","msg":"worker stopped"}`, string(raw))
}

func TestEncodeKeepsZeroClipFields(t *testing.T) {
	ev, err := worker.Decode([]byte(clipsLine))
	require.NoError(t, err)

	raw, err := worker.Encode(ev)
	require.NoError(t, err)

	var got struct {
		Clips []map[string]any `json:"clips"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Clips, 1)
	clip := got.Clips[0]
	assert.Equal(t, 0.0, clip["start_time"])
	assert.Equal(t, 42.5, clip["end_time"])
	assert.Equal(t, false, clip["is_approved"])
	assert.Equal(t, []any{}, clip["hashtags"])
	assert.Equal(t, "intro", clip["start_time_ref"])
	assert.Equal(t, "outro", clip["end_time_ref"])
}
