package stt

import (
	"fmt"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"

	"sessionengine/internal/audiocodec"
	"sessionengine/internal/engineerr"
	"sessionengine/internal/transcript"
)

// whisperModelSampleRate is whisper.cpp's native input rate.
const whisperModelSampleRate = 16000

// whisperPushThresholdSeconds is the minimum accumulated audio the
// backend waits for before running an inference pass.
const whisperPushThresholdSeconds = 2.0

// whisperBackend adapts whisper.cpp's Go bindings to the Transcriber
// interface. Each Session owns its own backend instance, holding a
// single whisper.Model and Context guarded by its own mutex.
type whisperBackend struct {
	mu sync.Mutex

	model   whisper.Model
	context whisper.Context

	captureRate int
	accum       []float32 // capture-rate samples awaiting transcription
	emitted     int64     // arrival index counter
	cursorS     float64   // running end-of-stream timestamp across inference passes
}

func newWhisperBackend(captureSampleRate int, modelPath string) (Transcriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, engineerr.New(engineerr.STTBackendUnavailable, fmt.Sprintf("whisper model load failed: %v", err))
	}
	ctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return nil, engineerr.New(engineerr.STTBackendUnavailable, fmt.Sprintf("whisper context init failed: %v", err))
	}
	return &whisperBackend{
		model:       model,
		context:     ctx,
		captureRate: captureSampleRate,
	}, nil
}

func (w *whisperBackend) Push(samples []float32, captureRate int) ([]transcript.Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.accum = append(w.accum, samples...)

	if audiocodec.DurationSeconds(len(w.accum), captureRate) < whisperPushThresholdSeconds {
		return nil, nil
	}
	return w.runInferenceLocked(captureRate)
}

func (w *whisperBackend) Flush() ([]transcript.Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.accum) == 0 {
		return nil, nil
	}
	return w.runInferenceLocked(w.captureRate)
}

// runInferenceLocked resamples the accumulated buffer to whisper's
// native rate, runs Process, and drains emitted segments. Must be
// called with mu held; empties w.accum on return.
func (w *whisperBackend) runInferenceLocked(captureRate int) ([]transcript.Segment, error) {
	baseS := w.cursorS
	windowDurationS := audiocodec.DurationSeconds(len(w.accum), captureRate)
	resampled := audiocodec.Resample(w.accum, captureRate, whisperModelSampleRate)

	if err := w.context.Process(resampled, nil, nil); err != nil {
		return nil, engineerr.New(engineerr.STTBackendFailure, fmt.Sprintf("whisper inference failed: %v", err))
	}

	var segs []transcript.Segment
	for {
		s, err := w.context.NextSegment()
		if err != nil {
			break
		}
		segs = append(segs, transcript.Segment{
			Text:         s.Text,
			StartS:       baseS + s.Start.Seconds(),
			EndS:         baseS + s.End.Seconds(),
			ArrivalIndex: w.emitted,
		})
		w.emitted++
	}

	w.cursorS = baseS + windowDurationS
	w.accum = w.accum[:0]
	return segs, nil
}

func (w *whisperBackend) BufferedSeconds() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return audiocodec.DurationSeconds(len(w.accum), w.captureRate)
}

func (w *whisperBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model.Close()
	return nil
}
