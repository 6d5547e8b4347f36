package debugsink

import (
	"sync"

	"github.com/sudip358/claude-route/pkg/neutral"
)

// ChunkBuffer accumulates the StreamEvents seen during one response so a
// VerbosityWithChunks sink can include them if the stream ends in error.
// It owns its state exclusively for the lifetime of one response, the
// same single-owner discipline the stream transcoder uses for its
// in-flight block state.
type ChunkBuffer struct {
	enabled bool

	mu     sync.Mutex
	chunks []neutral.StreamEvent
}

// NewChunkBuffer returns a buffer that only retains events when v is
// VerbosityWithChunks; at VerbosityErrorOnly, Record is a no-op so
// callers can unconditionally wire it into the hot path.
func NewChunkBuffer(v Verbosity) *ChunkBuffer {
	return &ChunkBuffer{enabled: v >= VerbosityWithChunks}
}

// Record appends ev. Safe to call on a nil *ChunkBuffer.
func (b *ChunkBuffer) Record(ev neutral.StreamEvent) {
	if b == nil || !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, ev)
}

// Snapshot returns a copy of the events recorded so far. Safe to call on
// a nil *ChunkBuffer.
func (b *ChunkBuffer) Snapshot() []neutral.StreamEvent {
	if b == nil || !b.enabled {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]neutral.StreamEvent, len(b.chunks))
	copy(out, b.chunks)
	return out
}
