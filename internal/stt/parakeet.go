package stt

import (
	"fmt"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"sessionengine/internal/audiocodec"
	"sessionengine/internal/engineerr"
	"sessionengine/internal/transcript"
)

// parakeetModelSampleRate is the NeMo/Parakeet family's native rate.
const parakeetModelSampleRate = 16000

const parakeetPushThresholdSeconds = 2.0

// parakeetBackend adapts a sherpa-onnx offline recognizer (driving a
// Parakeet/NeMo ONNX export) to the Transcriber interface. The
// recognizer is reused across Push calls; a fresh Stream is created
// per inference pass, matching sherpa-onnx-go's offline-recognition
// usage pattern.
type parakeetBackend struct {
	mu sync.Mutex

	recognizer *sherpa.OfflineRecognizer

	captureRate int
	accum       []float32
	emitted     int64
	cursorS     float64 // running end-of-stream timestamp across inference passes
}

func newParakeetBackend(captureSampleRate int, modelIdentifier string) (Transcriber, error) {
	config := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: parakeetModelSampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Transducer: sherpa.OfflineTransducerModelConfig{
				Encoder: modelIdentifier + "/encoder.onnx",
				Decoder: modelIdentifier + "/decoder.onnx",
				Joiner:  modelIdentifier + "/joiner.onnx",
			},
			Tokens:    modelIdentifier + "/tokens.txt",
			ModelType: "nemo_transducer",
			NumThreads: 1,
		},
	}

	recognizer := sherpa.NewOfflineRecognizer(&config)
	if recognizer == nil {
		return nil, engineerr.New(engineerr.STTBackendUnavailable, fmt.Sprintf("parakeet model %q failed to load", modelIdentifier))
	}

	return &parakeetBackend{
		recognizer:  recognizer,
		captureRate: captureSampleRate,
	}, nil
}

func (p *parakeetBackend) Push(samples []float32, captureRate int) ([]transcript.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accum = append(p.accum, samples...)

	if audiocodec.DurationSeconds(len(p.accum), captureRate) < parakeetPushThresholdSeconds {
		return nil, nil
	}
	return p.runInferenceLocked(captureRate)
}

func (p *parakeetBackend) Flush() ([]transcript.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.accum) == 0 {
		return nil, nil
	}
	return p.runInferenceLocked(p.captureRate)
}

func (p *parakeetBackend) runInferenceLocked(captureRate int) ([]transcript.Segment, error) {
	// The offline recognizer returns no internal timestamps per window,
	// so segment boundaries are derived from the running cursor plus
	// this window's source-rate duration.
	startS := p.cursorS
	resampled := audiocodec.Resample(p.accum, captureRate, parakeetModelSampleRate)
	durationS := audiocodec.DurationSeconds(len(p.accum), captureRate)

	stream := sherpa.NewOfflineStream(p.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(parakeetModelSampleRate, resampled)
	p.recognizer.Decode(stream)
	result := stream.GetResult()

	p.cursorS = startS + durationS
	p.accum = p.accum[:0]

	text := result.Text
	if text == "" {
		return nil, nil
	}

	seg := transcript.Segment{
		Text:         text,
		StartS:       startS,
		EndS:         startS + durationS,
		ArrivalIndex: p.emitted,
	}
	p.emitted++
	return []transcript.Segment{seg}, nil
}

func (p *parakeetBackend) BufferedSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return audiocodec.DurationSeconds(len(p.accum), p.captureRate)
}

func (p *parakeetBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sherpa.DeleteOfflineRecognizer(p.recognizer)
	return nil
}
