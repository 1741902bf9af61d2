// Package transcript implements an append-only, ordered transcript
// segment store that seals fixed-duration chunks for the MAP phase.
package transcript

import (
	"strings"
	"sync"
)

// Segment is a single contiguous utterance emitted by an STT backend.
// Segments are never mutated after creation.
type Segment struct {
	Text         string
	StartS       float64
	EndS         float64
	ArrivalIndex int64
}

// Chunk is an ordered, sealed group of segments spanning at least the
// buffer's configured chunk duration (or forced on stop). Once
// returned from Buffer it is never modified.
type Chunk struct {
	Index    int
	Segments []Segment
}

// Text concatenates the chunk's segment text with single spaces,
// trimming surrounding whitespace.
func (c Chunk) Text() string {
	parts := make([]string, 0, len(c.Segments))
	for _, s := range c.Segments {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Buffer is the append-only ordered segment store backing a Session's
// transcript. It is safe for concurrent use, though the engine only
// ever has a single writer (the session's push_chunk path) and a
// single reader (the MAP worker draining Sealed()).
type Buffer struct {
	mu sync.Mutex

	chunkDuration float64 // seconds

	allSegments []Segment // full history, for full_text()/low-content guard

	inProgress    []Segment
	inProgressDur float64 // end_s(last) - start_s(first) for the in-progress list

	nextChunkIndex int
	sealed         chan Chunk

	arrivalCounter int64
}

const defaultChunkDurationSeconds = 60.0
const sealedQueueCapacity = 4096

// New constructs a Buffer with the given chunk duration in seconds. A
// non-positive duration falls back to the default of 60s.
func New(chunkDurationSeconds float64) *Buffer {
	if chunkDurationSeconds <= 0 {
		chunkDurationSeconds = defaultChunkDurationSeconds
	}
	return &Buffer{
		chunkDuration: chunkDurationSeconds,
		sealed:        make(chan Chunk, sealedQueueCapacity),
	}
}

// Add appends a segment, assigning it the next arrival index, and
// seals a chunk into the Sealed() channel once the in-progress span
// reaches the configured chunk duration.
func (b *Buffer) Add(seg Segment) {
	b.mu.Lock()
	seg.ArrivalIndex = b.arrivalCounter
	b.arrivalCounter++

	b.allSegments = append(b.allSegments, seg)
	b.inProgress = append(b.inProgress, seg)

	if len(b.inProgress) == 1 {
		b.inProgressDur = seg.EndS - seg.StartS
	} else {
		first := b.inProgress[0]
		b.inProgressDur = seg.EndS - first.StartS
	}

	var toSeal *Chunk
	if b.inProgressDur >= b.chunkDuration {
		toSeal = b.sealLocked()
	}
	b.mu.Unlock()

	if toSeal != nil {
		b.sealed <- *toSeal
	}
}

// sealLocked must be called with mu held. It moves the in-progress
// list into a new sealed Chunk and resets in-progress state.
func (b *Buffer) sealLocked() *Chunk {
	if len(b.inProgress) == 0 {
		return nil
	}
	c := Chunk{Index: b.nextChunkIndex, Segments: b.inProgress}
	b.nextChunkIndex++
	b.inProgress = nil
	b.inProgressDur = 0
	return &c
}

// ForceFinalize seals any partial in-progress list into a final
// chunk. Returns nil if there is nothing to seal.
func (b *Buffer) ForceFinalize() *Chunk {
	b.mu.Lock()
	c := b.sealLocked()
	b.mu.Unlock()
	if c == nil {
		return nil
	}
	b.sealed <- *c
	return c
}

// Sealed returns the channel of sealed chunks, FIFO, single consumer.
func (b *Buffer) Sealed() <-chan Chunk {
	return b.sealed
}

// FullText concatenates every segment seen so far. Used only for the
// low-content guard; never exposed to output artifacts beyond that.
func (b *Buffer) FullText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	parts := make([]string, 0, len(b.allSegments))
	for _, s := range b.allSegments {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// SegmentCount returns how many segments have been added in total.
func (b *Buffer) SegmentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.allSegments)
}

// PendingSegments returns the number of segments accumulated into the
// current in-progress chunk that has not yet sealed.
func (b *Buffer) PendingSegments() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inProgress)
}

// Purge drops all retained segment text. Called after REDUCE returns
// so that no in-memory transcript text remains reachable for the
// session.
func (b *Buffer) Purge() {
	b.mu.Lock()
	b.allSegments = nil
	b.inProgress = nil
	b.mu.Unlock()
}

// Close closes the sealed-chunk channel. Callers must not call Add or
// ForceFinalize after Close.
func (b *Buffer) Close() {
	close(b.sealed)
}
