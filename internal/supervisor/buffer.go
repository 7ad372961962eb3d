package supervisor

import (
	"sync"
	"time"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
)

// outputBuffer is the bounded per-stream, per-generation output log.
// Append is called only by the owning handle's pump goroutine; reads may
// happen concurrently from any number of callers.
//
// Sequence numbers start at 1. floor is the highest sequence that has been
// evicted (0 while nothing has been), so the retained chunks always cover
// (floor, floor+len]. A read from a position below floor has missed data
// and fails with ErrTruncated rather than returning a silent gap.
type outputBuffer struct {
	mu       sync.RWMutex
	stream   domain.Stream
	maxBytes int
	chunks   []domain.Chunk
	size     int
	floor    uint64
	next     uint64
}

func newOutputBuffer(stream domain.Stream, maxBytes int) *outputBuffer {
	return &outputBuffer{
		stream:   stream,
		maxBytes: maxBytes,
		next:     1,
	}
}

// Append stores one line and returns the chunk with its assigned sequence
// number. When the buffer grows past maxBytes the oldest chunks are evicted
// and floor advances; the newest chunk is always retained even if it is
// larger than maxBytes on its own.
func (b *outputBuffer) Append(line string) domain.Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := domain.Chunk{
		Stream: b.stream,
		Seq:    b.next,
		Line:   line,
		Time:   time.Now(),
	}
	b.next++
	b.chunks = append(b.chunks, chunk)
	b.size += len(line)

	for b.size > b.maxBytes && len(b.chunks) > 1 {
		oldest := b.chunks[0]
		b.chunks = b.chunks[1:]
		b.size -= len(oldest.Line)
		b.floor = oldest.Seq
	}

	return chunk
}

// ReadSince returns all retained chunks with sequence greater than since,
// plus the current floor. It fails with ErrTruncated when since precedes
// the floor, i.e. the caller would miss evicted chunks.
func (b *outputBuffer) ReadSince(since uint64) ([]domain.Chunk, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if since < b.floor {
		return nil, b.floor, ErrTruncated
	}

	// Positions at or past the newest assigned sequence have nothing newer
	// to read. Checked before the skip arithmetic, which would overflow for
	// huge caller-supplied positions.
	if since >= b.next-1 {
		return nil, b.floor, nil
	}

	skip := int(since - b.floor)

	out := make([]domain.Chunk, len(b.chunks)-skip)
	copy(out, b.chunks[skip:])
	return out, b.floor, nil
}

// Snapshot returns a copy of every retained chunk.
func (b *outputBuffer) Snapshot() []domain.Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Chunk, len(b.chunks))
	copy(out, b.chunks)
	return out
}
