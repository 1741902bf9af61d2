package stt

import (
	"os"
	"path/filepath"
	"testing"
)

// parakeetTestModelDirEnv points at a directory containing
// encoder.onnx/decoder.onnx/joiner.onnx/tokens.txt for a Parakeet/NeMo
// export; set this in an environment where the ONNX files are
// available to exercise the backend against real native bindings.
const parakeetTestModelDirEnv = "ENGINE_TEST_PARAKEET_MODEL_DIR"

func requireParakeetModel(t *testing.T) string {
	t.Helper()
	dir := os.Getenv(parakeetTestModelDirEnv)
	if dir == "" {
		t.Skip("ENGINE_TEST_PARAKEET_MODEL_DIR not set, skipping parakeet backend test")
	}
	if _, err := os.Stat(filepath.Join(dir, "tokens.txt")); os.IsNotExist(err) {
		t.Skip("parakeet model files not found, skipping parakeet backend test")
	}
	return dir
}

func TestParakeetBackendTranscribesSilence(t *testing.T) {
	modelDir := requireParakeetModel(t)

	transcriber, err := newParakeetBackend(16000, modelDir)
	if err != nil {
		t.Fatalf("newParakeetBackend: %v", err)
	}
	defer transcriber.Close()

	samples := make([]float32, 16000*3) // 3s of silence, above the push threshold
	if _, err := transcriber.Push(samples, 16000); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if transcriber.BufferedSeconds() != 0 {
		t.Errorf("expected buffer to drain after crossing the push threshold, got %v buffered", transcriber.BufferedSeconds())
	}
}

func TestParakeetBackendCursorAdvancesAcrossPushes(t *testing.T) {
	modelDir := requireParakeetModel(t)

	backend, err := newParakeetBackend(16000, modelDir)
	if err != nil {
		t.Fatalf("newParakeetBackend: %v", err)
	}
	defer backend.Close()

	pb := backend.(*parakeetBackend)
	samples := make([]float32, 16000*3)

	if _, err := pb.Push(samples, 16000); err != nil {
		t.Fatalf("Push: %v", err)
	}
	firstCursor := pb.cursorS
	if firstCursor <= 0 {
		t.Fatalf("expected cursor to advance past the first window, got %v", firstCursor)
	}

	if _, err := pb.Push(samples, 16000); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if pb.cursorS <= firstCursor {
		t.Fatalf("expected cursor to keep advancing on a second window, got %v then %v", firstCursor, pb.cursorS)
	}
}
