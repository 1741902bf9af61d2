package transcript

import (
	"testing"
	"time"
)

func TestAddSealsOnceChunkDurationReached(t *testing.T) {
	b := New(2.0)

	b.Add(Segment{Text: "hello", StartS: 0, EndS: 1})
	select {
	case <-b.Sealed():
		t.Fatal("sealed too early, chunk duration not yet reached")
	default:
	}

	b.Add(Segment{Text: "world", StartS: 1, EndS: 2.5})

	select {
	case chunk := <-b.Sealed():
		if chunk.Text() != "hello world" {
			t.Errorf("got %q want %q", chunk.Text(), "hello world")
		}
		if chunk.Index != 0 {
			t.Errorf("got index %d want 0", chunk.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a sealed chunk")
	}
}

func TestForceFinalizeSealsPartialChunk(t *testing.T) {
	b := New(60.0)
	b.Add(Segment{Text: "partial", StartS: 0, EndS: 1})

	chunk := b.ForceFinalize()
	if chunk == nil {
		t.Fatal("expected a finalized chunk")
	}
	if chunk.Text() != "partial" {
		t.Errorf("got %q want %q", chunk.Text(), "partial")
	}

	if b.ForceFinalize() != nil {
		t.Fatal("expected nil on second finalize with nothing in progress")
	}
}

func TestFullTextAndSegmentCount(t *testing.T) {
	b := New(60.0)
	b.Add(Segment{Text: "one", StartS: 0, EndS: 1})
	b.Add(Segment{Text: "two", StartS: 1, EndS: 2})

	if got := b.FullText(); got != "one two" {
		t.Errorf("got %q want %q", got, "one two")
	}
	if got := b.SegmentCount(); got != 2 {
		t.Errorf("got %d want 2", got)
	}
}

func TestPurgeClearsRetainedText(t *testing.T) {
	b := New(60.0)
	b.Add(Segment{Text: "secret", StartS: 0, EndS: 1})
	b.Purge()

	if got := b.FullText(); got != "" {
		t.Errorf("expected empty text after purge, got %q", got)
	}
	if got := b.SegmentCount(); got != 0 {
		t.Errorf("expected zero segments after purge, got %d", got)
	}
}

func TestCloseDrainsRangeLoop(t *testing.T) {
	b := New(60.0)
	b.Add(Segment{Text: "final", StartS: 0, EndS: 1})
	b.ForceFinalize()
	b.Close()

	count := 0
	for range b.Sealed() {
		count++
	}
	if count != 1 {
		t.Errorf("got %d chunks drained, want 1", count)
	}
}

func TestArrivalIndexIsMonotonic(t *testing.T) {
	b := New(60.0)
	b.Add(Segment{Text: "a", StartS: 0, EndS: 1})
	b.Add(Segment{Text: "b", StartS: 1, EndS: 2})
	chunk := b.ForceFinalize()
	if chunk.Segments[0].ArrivalIndex != 0 || chunk.Segments[1].ArrivalIndex != 1 {
		t.Errorf("unexpected arrival indices: %+v", chunk.Segments)
	}
}
