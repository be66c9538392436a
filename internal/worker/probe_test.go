package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"mahira-clipper/internal/worker"
)

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"python", "python3", "py"}, worker.Candidates("windows"))
	assert.Equal(t, []string{"python3", "python"}, worker.Candidates("linux"))
	assert.Equal(t, []string{"python3", "python"}, worker.Candidates("darwin"))
}

func TestResolveInterpreter(t *testing.T) {
	var probed []string
	probe := func(_ context.Context, name string) error {
		probed = append(probed, name)
		if name == "python3" {
			return nil
		}
		return errors.New("not found")
	}

	name := worker.ResolveInterpreter(context.Background(), []string{"python", "python3", "py"}, probe)
	assert.Equal(t, "python3", name)
	assert.Equal(t, []string{"python", "python3"}, probed)
}

func TestResolveInterpreterFallsBack(t *testing.T) {
	probe := func(context.Context, string) error { return errors.New("not found") }

	_, ok := worker.FindInterpreter(context.Background(), []string{"python3", "python"}, probe)
	assert.False(t, ok)
	assert.Equal(t, worker.DefaultInterpreter, worker.ResolveInterpreter(context.Background(), []string{"python3"}, probe))
}
