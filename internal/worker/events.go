package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mahira-clipper/internal/domain"
)

// Kind is the discriminator carried in the "event" field of every worker line.
type Kind string

const (
	KindLog            Kind = "log"
	KindProgress       Kind = "progress"
	KindProjectCreated Kind = "project_created"
	KindClips          Kind = "clips"
	KindDone           Kind = "done"
	KindError          Kind = "error"
)

// Log levels used by the worker and by synthesized diagnostic events.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	// ErrMissingKind is returned for a record without an "event" field.
	ErrMissingKind = errors.New("worker record has no event kind")
	// ErrUnknownKind is returned for an event kind this shell does not understand.
	ErrUnknownKind = errors.New("unknown worker event kind")
)

// Event is one record of the worker stream. The concrete type is one of
// LogEvent, ProgressEvent, ProjectCreatedEvent, ClipsEvent, DoneEvent or ErrorEvent.
type Event interface {
	Kind() Kind
	line() []byte
	isEvent()
}

// origin holds the worker line an event was decoded from. Events the shell
// synthesizes leave it empty.
type origin struct {
	raw []byte
}

func (o origin) line() []byte { return o.raw }

type LogEvent struct {
	origin
	Msg   string `json:"msg"`
	Level string `json:"level,omitempty"`
}

type ProgressEvent struct {
	origin
	Step domain.Phase `json:"step"`
	Pct  float64      `json:"pct"`
}

type ProjectCreatedEvent struct {
	origin
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
}

type ClipsEvent struct {
	origin
	Clips []domain.Clip `json:"clips"`
}

type DoneEvent struct {
	origin
	ProjectID   string        `json:"project_id,omitempty"`
	FinalFolder string        `json:"final_folder"`
	Clips       []domain.Clip `json:"clips"`
}

type ErrorEvent struct {
	origin
	Msg string `json:"msg"`
}

func (LogEvent) Kind() Kind            { return KindLog }
func (ProgressEvent) Kind() Kind       { return KindProgress }
func (ProjectCreatedEvent) Kind() Kind { return KindProjectCreated }
func (ClipsEvent) Kind() Kind          { return KindClips }
func (DoneEvent) Kind() Kind           { return KindDone }
func (ErrorEvent) Kind() Kind          { return KindError }

func (LogEvent) isEvent()            {}
func (ProgressEvent) isEvent()       {}
func (ProjectCreatedEvent) isEvent() {}
func (ClipsEvent) isEvent()          {}
func (DoneEvent) isEvent()           {}
func (ErrorEvent) isEvent()          {}

// IsTerminal reports whether ev ends a run.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case DoneEvent, ErrorEvent:
		return true
	default:
		return false
	}
}

type envelope struct {
	Event Kind `json:"event"`
}

// Decode parses one worker line into its concrete event type.
func Decode(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}

	switch env.Event {
	case "":
		return nil, ErrMissingKind
	case KindLog:
		var ev LogEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		if ev.Level == "" {
			ev.Level = LevelInfo
		}
		return ev, nil
	case KindProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		phase, ok := domain.ParsePhase(string(ev.Step))
		if !ok {
			return nil, fmt.Errorf("unknown progress step %q", ev.Step)
		}
		ev.Step = phase
		ev.Pct = clampPct(ev.Pct)
		return ev, nil
	case KindProjectCreated:
		return decodeAs[ProjectCreatedEvent](line)
	case KindClips:
		return decodeAs[ClipsEvent](line)
	case KindDone:
		return decodeAs[DoneEvent](line)
	case KindError:
		return decodeAs[ErrorEvent](line)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Event)
	}
}

// DecodeLine is Decode for a record received from the worker: the returned
// event remembers line, and Wire hands it back untouched.
func DecodeLine(line []byte) (Event, error) {
	ev, err := Decode(line)
	if err != nil {
		return nil, err
	}
	return withOrigin(ev, origin{raw: line}), nil
}

func decodeAs[T Event](line []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode renders ev in the worker wire format, including the "event" field.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(ev.Kind())
	if err != nil {
		return nil, err
	}

	// body is always a JSON object; splice the discriminator in front.
	var b strings.Builder
	b.WriteString(`{"event":`)
	b.Write(kind)
	if len(body) > 2 {
		b.WriteByte(',')
		b.Write(body[1:])
	} else {
		b.WriteByte('}')
	}
	return []byte(b.String()), nil
}

// Wire returns the record to forward for ev: the worker's own line when ev
// was read from the worker, otherwise the Encode form.
func Wire(ev Event) ([]byte, error) {
	if raw := ev.line(); len(raw) > 0 {
		return raw, nil
	}
	return Encode(ev)
}

func withOrigin(ev Event, o origin) Event {
	switch e := ev.(type) {
	case LogEvent:
		e.origin = o
		return e
	case ProgressEvent:
		e.origin = o
		return e
	case ProjectCreatedEvent:
		e.origin = o
		return e
	case ClipsEvent:
		e.origin = o
		return e
	case DoneEvent:
		e.origin = o
		return e
	case ErrorEvent:
		e.origin = o
		return e
	default:
		return ev
	}
}

func clampPct(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
