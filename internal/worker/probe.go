package worker

import (
	"context"
	"os/exec"
	goruntime "runtime"
	"time"
)

// DefaultInterpreter is spawned when no candidate answers the version probe.
// Spawning it will then fail loudly instead of the job silently doing nothing.
const DefaultInterpreter = "python"

const probeTimeout = 5 * time.Second

// ProbeFunc checks whether an interpreter name is usable.
type ProbeFunc func(ctx context.Context, name string) error

// Candidates returns interpreter names to probe, in order, for goos.
func Candidates(goos string) []string {
	if goos == "windows" {
		return []string{"python", "python3", "py"}
	}
	return []string{"python3", "python"}
}

// DefaultCandidates returns Candidates for the running platform.
func DefaultCandidates() []string {
	return Candidates(goruntime.GOOS)
}

// VersionProbe runs "<name> --version" and succeeds when it exits zero.
func VersionProbe(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "--version")
	return cmd.Run()
}

// FindInterpreter returns the first candidate for which probe succeeds.
// The second result is false when none did.
func FindInterpreter(ctx context.Context, candidates []string, probe ProbeFunc) (string, bool) {
	if probe == nil {
		probe = VersionProbe
	}
	for _, name := range candidates {
		if err := probe(ctx, name); err == nil {
			return name, true
		}
	}
	return "", false
}

// ResolveInterpreter returns the first working candidate or DefaultInterpreter.
func ResolveInterpreter(ctx context.Context, candidates []string, probe ProbeFunc) string {
	if name, ok := FindInterpreter(ctx, candidates, probe); ok {
		return name
	}
	return DefaultInterpreter
}
