package worker

import (
	"bytes"
	"context"
	"log/slog"
)

// LineBuffer reassembles newline-delimited records from arbitrary chunks.
// The trailing incomplete segment is carried over to the next Feed call.
type LineBuffer struct {
	carry []byte
}

// Feed appends chunk and returns every complete, non-blank line it closes.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.carry = append(b.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.carry, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(b.carry[:i], []byte{'\r'})
		b.carry = b.carry[i+1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, string(line))
	}

	if len(b.carry) == 0 {
		b.carry = nil
	}
	return lines
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (b *LineBuffer) Pending() int {
	return len(b.carry)
}

// Flush returns and clears the unterminated tail, or "" when it is blank.
func (b *LineBuffer) Flush() string {
	tail := bytes.TrimSuffix(b.carry, []byte{'\r'})
	b.carry = nil
	if len(bytes.TrimSpace(tail)) == 0 {
		return ""
	}
	return string(tail)
}

// Demux turns the worker's primary and diagnostic byte streams into events.
// Each channel owns its own LineBuffer, so the two writers may be driven
// from different goroutines.
type Demux struct {
	ctx    context.Context
	emit   func(Event)
	logger *slog.Logger

	primary    LineBuffer
	diagnostic LineBuffer
}

// NewDemux creates a demultiplexer that hands each decoded event to emit.
func NewDemux(ctx context.Context, logger *slog.Logger, emit func(Event)) *Demux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Demux{ctx: ctx, emit: emit, logger: logger}
}

// Primary returns the writer for the worker's structured output (stdout).
func (d *Demux) Primary() *ChannelWriter {
	return &ChannelWriter{feed: d.feedPrimary}
}

// Diagnostic returns the writer for the worker's free-text output (stderr).
func (d *Demux) Diagnostic() *ChannelWriter {
	return &ChannelWriter{feed: d.feedDiagnostic}
}

func (d *Demux) feedPrimary(chunk []byte) {
	for _, line := range d.primary.Feed(chunk) {
		ev, err := DecodeLine([]byte(line))
		if err != nil {
			d.logger.DebugContext(d.ctx, "dropping malformed worker line", "line", line, "error", err)
			continue
		}
		d.emit(ev)
	}
}

func (d *Demux) feedDiagnostic(chunk []byte) {
	for _, line := range d.diagnostic.Feed(chunk) {
		d.emit(LogEvent{Msg: line, Level: LevelWarn})
	}
}

// Close ends both channels. An unterminated primary record is discarded;
// unterminated diagnostic text is still surfaced as a warning.
func (d *Demux) Close() {
	if n := d.primary.Pending(); n > 0 {
		d.logger.DebugContext(d.ctx, "discarding unterminated worker output", "bytes", n)
	}
	if tail := d.diagnostic.Flush(); tail != "" {
		d.emit(LogEvent{Msg: tail, Level: LevelWarn})
	}
}

// ChannelWriter adapts one demux channel to io.Writer.
type ChannelWriter struct {
	feed func([]byte)
}

func (w *ChannelWriter) Write(p []byte) (int, error) {
	w.feed(p)
	return len(p), nil
}
