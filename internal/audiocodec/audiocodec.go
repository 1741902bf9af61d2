// Package audiocodec implements decoding, validation, mono
// conversion, and resampling of the raw PCM audio the capture client
// streams over /audio_chunk. Every function here is a pure,
// deterministic transform with no internal state.
package audiocodec

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"sessionengine/internal/engineerr"
)

const (
	MinSampleRate = 8000
	MaxSampleRate = 96000

	// amplitudeEpsilon tolerates float round-trip noise around the
	// nominal [-1, 1] PCM range.
	amplitudeEpsilon = 1e-6
)

// Decode turns a base64 "f32_mono" payload and its declared sample
// rate into a float32 sample slice. It fails with INVALID_AUDIO_FORMAT
// for any of: bad base64, byte length not a multiple of 4, zero
// decoded samples, sample_rate out of [8000, 96000], or any sample
// outside [-1-ε, 1+ε].
func Decode(b64 string, sampleRate int) ([]float32, error) {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return nil, engineerr.New(engineerr.InvalidAudioFormat, "sample_rate out of range [8000, 96000]")
	}
	if b64 == "" {
		return nil, engineerr.New(engineerr.InvalidAudioFormat, "pcm_b64 is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, engineerr.New(engineerr.InvalidAudioFormat, "pcm_b64 is not valid base64")
	}
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, engineerr.New(engineerr.InvalidAudioFormat, "decoded byte length is not a multiple of 4")
	}

	n := len(raw) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}

	if err := validateRange(samples); err != nil {
		return nil, err
	}

	return samples, nil
}

func validateRange(samples []float32) error {
	for _, s := range samples {
		v := float64(s)
		if v < -1-amplitudeEpsilon || v > 1+amplitudeEpsilon {
			return engineerr.New(engineerr.InvalidAudioFormat, "sample value outside [-1-eps, 1+eps]")
		}
	}
	return nil
}

// ToMono averages an interleaved multi-channel buffer down to a single
// channel. declaredChannels == 1 is the identity transform.
func ToMono(samples []float32, declaredChannels int) []float32 {
	if declaredChannels <= 1 {
		return samples
	}
	frames := len(samples) / declaredChannels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * declaredChannels
		for c := 0; c < declaredChannels; c++ {
			sum += samples[base+c]
		}
		out[i] = sum / float32(declaredChannels)
	}
	return out
}

// Resample converts samples from srcRate to dstRate using
// gonum/interp's piecewise-linear interpolator over the sample-index
// axis, then clamps peak amplitude back within tolerance. Duration
// reported by callers must always be derived from len(samples)/srcRate,
// never from the resampled length.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	srcN := len(samples)
	dstN := int(math.Round(float64(srcN) * float64(dstRate) / float64(srcRate)))
	if dstN <= 0 {
		return nil
	}
	if srcN == 1 {
		out := make([]float32, dstN)
		for i := range out {
			out[i] = samples[0]
		}
		return out
	}

	xs := make([]float64, srcN)
	ys := make([]float64, srcN)
	for i, s := range samples {
		xs[i] = float64(i)
		ys[i] = float64(s)
	}

	var pl interp.PiecewiseLinear
	// xs is strictly increasing by construction, so Fit never errors.
	_ = pl.Fit(xs, ys)

	out := make([]float32, dstN)
	ratio := float64(srcN-1) / float64(maxInt(dstN-1, 1))
	maxX := xs[srcN-1]
	for i := 0; i < dstN; i++ {
		srcPos := float64(i) * ratio
		if srcPos > maxX {
			srcPos = maxX
		}
		out[i] = float32(pl.Predict(srcPos))
	}

	clampToUnitRange(out)
	return out
}

// clampToUnitRange keeps resampled amplitude within the tolerance the
// spec requires (≤ 1.0 + ε), using gonum/floats for the peak scan.
func clampToUnitRange(samples []float32) {
	f64 := make([]float64, len(samples))
	for i, s := range samples {
		f64[i] = float64(s)
	}
	if len(f64) == 0 {
		return
	}
	peak := math.Max(math.Abs(floats.Max(f64)), math.Abs(floats.Min(f64)))
	if peak <= 1+amplitudeEpsilon {
		return
	}
	scale := (1 + amplitudeEpsilon) / peak
	for i := range samples {
		samples[i] = float32(float64(samples[i]) * scale)
	}
}

// DurationSeconds computes duration from source-rate sample count,
// never from a post-resample count.
func DurationSeconds(numSamples, srcRate int) float64 {
	if srcRate <= 0 {
		return 0
	}
	return float64(numSamples) / float64(srcRate)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
