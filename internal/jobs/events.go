package jobs

import (
	"encoding/json"
	"sync"
	"time"

	"mahira-clipper/internal/worker"
)

// Entry is a sequenced worker event kept for polling UI subscribers.
type Entry struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	JobID     string       `json:"jobId"`
	Kind      worker.Kind  `json:"kind"`
	Payload   worker.Event `json:"payload"`
	// Record is the event as the worker wrote it, or its encoded form for
	// events the shell synthesized.
	Record json.RawMessage `json:"record,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu         sync.RWMutex
	nextSeq    int64
	maxEntries int
	entries    []Entry
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEntries int) *EventBus {
	if maxEntries <= 0 {
		maxEntries = 500
	}

	return &EventBus{
		maxEntries: maxEntries,
		entries:    make([]Entry, 0, maxEntries),
	}
}

// Publish appends one worker event of jobID and assigns sequence and timestamp.
func (b *EventBus) Publish(jobID string, ev worker.Event) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	entry := Entry{
		Seq:       b.nextSeq,
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
		Kind:      ev.Kind(),
		Payload:   ev,
	}
	if raw, err := worker.Wire(ev); err == nil {
		entry.Record = raw
	}

	b.entries = append(b.entries, entry)
	if len(b.entries) > b.maxEntries {
		trim := len(b.entries) - b.maxEntries
		b.entries = append([]Entry(nil), b.entries[trim:]...)
	}

	return entry
}

// Since returns entries with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.entries) == 0 {
		return nil
	}

	out := make([]Entry, 0, len(b.entries))
	for _, entry := range b.entries {
		if entry.Seq > seq {
			out = append(out, entry)
		}
	}
	return out
}

// LastSeq returns the sequence of the newest entry, or 0 when empty.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
