package jobs

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

// Tracker folds the worker event stream of the current job into a Job snapshot.
type Tracker struct {
	mu      sync.RWMutex
	current domain.Job
	now     func() time.Time
}

// NewTracker creates a tracker in idle state.
func NewTracker() *Tracker {
	return &Tracker{
		current: idleJob(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reset starts tracking jobID from scratch: Running with every phase pending.
// Any previous job, finished or not, is forgotten.
func (t *Tracker) Reset(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = domain.Job{
		ID:        jobID,
		Status:    domain.JobStatusRunning,
		Phases:    pendingPhases(),
		StartedAt: t.now(),
	}
}

// Clear returns the tracker to idle.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = idleJob()
}

// Apply interprets one event and reports whether the snapshot changed.
// Events are ignored unless a job is running.
func (t *Tracker) Apply(ev worker.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apply(ev)
}

// ApplyFor is Apply restricted to jobID. ok is false, and the snapshot is
// left alone, once the tracker follows another job.
func (t *Tracker) ApplyFor(jobID string, ev worker.Event) (changed, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.ID != jobID {
		return false, false
	}
	return t.apply(ev), true
}

func (t *Tracker) apply(ev worker.Event) bool {
	if t.current.Status != domain.JobStatusRunning {
		return false
	}

	switch ev := ev.(type) {
	case worker.LogEvent:
		return false
	case worker.ProjectCreatedEvent:
		t.current.ProjectName = ev.Name
		if ev.ProjectID != "" {
			t.current.ProjectID = ev.ProjectID
		}
		return true
	case worker.ProgressEvent:
		return t.applyProgress(ev)
	case worker.ClipsEvent:
		t.current.Clips = cloneClips(ev.Clips)
		return true
	case worker.DoneEvent:
		for i := range t.current.Phases {
			t.current.Phases[i].Status = domain.PhaseStatusDone
			t.current.Phases[i].Pct = 100
		}
		t.current.Status = domain.JobStatusSucceeded
		t.current.FinalFolder = ev.FinalFolder
		t.current.Clips = cloneClips(ev.Clips)
		if ev.ProjectID != "" {
			t.current.ProjectID = ev.ProjectID
		}
		t.current.FinishedAt = t.now()
		return true
	case worker.ErrorEvent:
		if i := t.activePhase(); i >= 0 && t.current.Phases[i].Status == domain.PhaseStatusRunning {
			t.current.Phases[i].Status = domain.PhaseStatusError
		}
		t.current.Status = domain.JobStatusFailed
		t.current.Error = ev.Msg
		t.current.FinishedAt = t.now()
		return true
	default:
		return false
	}
}

// applyProgress marks earlier phases done, step running and later phases pending.
// A step behind the active phase is stale and ignored.
func (t *Tracker) applyProgress(ev worker.ProgressEvent) bool {
	idx := lo.IndexOf(domain.PhaseOrder, ev.Step)
	if idx < 0 || idx < t.activePhase() {
		return false
	}

	for i := range t.current.Phases {
		switch {
		case i < idx:
			t.current.Phases[i].Status = domain.PhaseStatusDone
			t.current.Phases[i].Pct = 100
		case i == idx:
			t.current.Phases[i].Status = domain.PhaseStatusRunning
			t.current.Phases[i].Pct = ev.Pct
		default:
			t.current.Phases[i].Status = domain.PhaseStatusPending
			t.current.Phases[i].Pct = 0
		}
	}
	return true
}

// activePhase returns the index of the furthest phase that has started, or -1.
func (t *Tracker) activePhase() int {
	_, idx, ok := lo.FindLastIndexOf(t.current.Phases, func(p domain.PhaseState) bool {
		return p.Status != domain.PhaseStatusPending
	})
	if !ok {
		return -1
	}
	return idx
}

// Current returns a deep copy of the tracked job.
func (t *Tracker) Current() domain.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job := t.current
	job.Phases = slices.Clone(t.current.Phases)
	job.Clips = cloneClips(t.current.Clips)
	return job
}

// IsRunning reports whether a job is in flight.
func (t *Tracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Status == domain.JobStatusRunning
}

func idleJob() domain.Job {
	return domain.Job{Status: domain.JobStatusIdle, Phases: pendingPhases()}
}

func pendingPhases() []domain.PhaseState {
	return lo.Map(domain.PhaseOrder, func(p domain.Phase, _ int) domain.PhaseState {
		return domain.PhaseState{Phase: p, Status: domain.PhaseStatusPending}
	})
}

func cloneClips(clips []domain.Clip) []domain.Clip {
	if clips == nil {
		return nil
	}
	return lo.Map(clips, func(c domain.Clip, _ int) domain.Clip {
		c.Hashtags = slices.Clone(c.Hashtags)
		return c
	})
}
