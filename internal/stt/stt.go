// Package stt defines the pluggable STT backend interface and its
// named-variant factory ("whisper", "parakeet", and the dev-only
// "echo" backend), built as a switch-on-name construction pattern.
package stt

import (
	"fmt"

	"sessionengine/internal/engineerr"
	"sessionengine/internal/transcript"
)

// Transcriber is a stateful, per-session streaming STT backend. Calls
// must be serialized by the caller (the engine wraps every call with
// a per-session mutex); a Transcriber instance must never be shared
// across sessions.
type Transcriber interface {
	// Push feeds mono float32 samples at the session's capture rate
	// and returns zero or more newly available segments. The backend
	// internally resamples to its native rate.
	Push(samples []float32, captureRate int) ([]transcript.Segment, error)

	// Flush transcribes whatever remains in the backend's internal
	// buffer and leaves it empty.
	Flush() ([]transcript.Segment, error)

	// BufferedSeconds reports undrained audio in capture-rate seconds.
	BufferedSeconds() float64

	// Close releases any backend-held resources (model handles,
	// native contexts).
	Close() error
}

// Name identifies a registered backend variant.
type Name string

const (
	Whisper  Name = "whisper"
	Parakeet Name = "parakeet"
	Echo     Name = "echo" // dev-mode only
)

// New constructs a Transcriber for the named variant. modelIdentifier
// is the backend-specific model name/path. devMode must be true for
// the "echo" variant to be permitted; requesting it in production
// mode fails fast with STT_BACKEND_UNAVAILABLE, enforcing a
// production ban on mock backends.
func New(name Name, captureSampleRate int, modelIdentifier string, devMode bool) (Transcriber, error) {
	switch name {
	case Whisper:
		return newWhisperBackend(captureSampleRate, modelIdentifier)
	case Parakeet:
		return newParakeetBackend(captureSampleRate, modelIdentifier)
	case Echo:
		if !devMode {
			return nil, engineerr.New(engineerr.STTBackendUnavailable, "echo backend is not available in production mode")
		}
		return newEchoBackend(captureSampleRate), nil
	default:
		return nil, engineerr.New(engineerr.STTBackendUnavailable, fmt.Sprintf("unknown STT backend %q", name))
	}
}

// IsRecognized reports whether name is a known backend identifier:
// the two advertised by /health plus the dev-only "echo" backend,
// which stt.New still refuses outside dev mode.
func IsRecognized(name string) bool {
	switch Name(name) {
	case Whisper, Parakeet, Echo:
		return true
	default:
		return false
	}
}

// AdvertisedBackends lists the production-visible backend identifiers
// for GET /health.
func AdvertisedBackends() []string {
	return []string{string(Whisper), string(Parakeet)}
}
