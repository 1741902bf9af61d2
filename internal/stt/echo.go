package stt

import (
	"fmt"
	"sync"

	"sessionengine/internal/audiocodec"
	"sessionengine/internal/transcript"
)

// echoWindowSeconds is the fixed window the dev-mode backend slices
// pushed audio into before emitting a placeholder segment.
const echoWindowSeconds = 2.0

// echoBackend is a deterministic, dev-mode-only STT stand-in. It
// never loads a model and never fails; it exists so the engine can be
// exercised end-to-end without native STT dependencies present.
// Production mode must never construct this backend (see stt.New).
type echoBackend struct {
	mu sync.Mutex

	captureRate int
	accum       []float32
	emitted     int64
	cursorS     float64
}

func newEchoBackend(captureSampleRate int) Transcriber {
	return &echoBackend{captureRate: captureSampleRate}
}

func (e *echoBackend) Push(samples []float32, captureRate int) ([]transcript.Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.accum = append(e.accum, samples...)

	windowSamples := int(echoWindowSeconds * float64(captureRate))
	var segs []transcript.Segment
	for len(e.accum) >= windowSamples {
		window := e.accum[:windowSamples]
		e.accum = e.accum[windowSamples:]

		dur := audiocodec.DurationSeconds(len(window), captureRate)
		segs = append(segs, transcript.Segment{
			Text:         fmt.Sprintf("[dev echo segment %d]", e.emitted),
			StartS:       e.cursorS,
			EndS:         e.cursorS + dur,
			ArrivalIndex: e.emitted,
		})
		e.cursorS += dur
		e.emitted++
	}
	return segs, nil
}

func (e *echoBackend) Flush() ([]transcript.Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.accum) == 0 {
		return nil, nil
	}
	dur := audiocodec.DurationSeconds(len(e.accum), e.captureRate)
	seg := transcript.Segment{
		Text:         fmt.Sprintf("[dev echo segment %d]", e.emitted),
		StartS:       e.cursorS,
		EndS:         e.cursorS + dur,
		ArrivalIndex: e.emitted,
	}
	e.cursorS += dur
	e.emitted++
	e.accum = e.accum[:0]
	return []transcript.Segment{seg}, nil
}

func (e *echoBackend) BufferedSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return audiocodec.DurationSeconds(len(e.accum), e.captureRate)
}

func (e *echoBackend) Close() error {
	return nil
}
