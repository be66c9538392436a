package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"mahira-clipper/internal/log"
)

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWriter(&buf, false)

	ctx := log.WithJob(context.Background(), "job-1")
	logger.InfoContext(ctx, "spawned", "pid", 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "spawned", rec["msg"])
	require.Equal(t, "job-1", rec["job_id"])
	require.EqualValues(t, 42, rec["pid"])
}

func TestVerboseLevel(t *testing.T) {
	var buf bytes.Buffer
	log.NewWriter(&buf, false).Debug("hidden")
	require.Zero(t, buf.Len())

	log.NewWriter(&buf, true).Debug("shown")
	require.Contains(t, buf.String(), "shown")
}
