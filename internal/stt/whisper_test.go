package stt

import (
	"os"
	"testing"
)

// whisperTestModelPath points at a real whisper.cpp GGML model; set
// this env var in an environment where one is available to exercise
// the backend against real native bindings.
const whisperTestModelPathEnv = "ENGINE_TEST_WHISPER_MODEL_PATH"

func requireWhisperModel(t *testing.T) string {
	t.Helper()
	path := os.Getenv(whisperTestModelPathEnv)
	if path == "" {
		t.Skip("ENGINE_TEST_WHISPER_MODEL_PATH not set, skipping whisper backend test")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("whisper model file not found, skipping whisper backend test")
	}
	return path
}

func TestWhisperBackendTranscribesSilence(t *testing.T) {
	modelPath := requireWhisperModel(t)

	transcriber, err := newWhisperBackend(16000, modelPath)
	if err != nil {
		t.Fatalf("newWhisperBackend: %v", err)
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

func TestWhisperBackendCursorAdvancesAcrossPushes(t *testing.T) {
	modelPath := requireWhisperModel(t)

	backend, err := newWhisperBackend(16000, modelPath)
	if err != nil {
		t.Fatalf("newWhisperBackend: %v", err)
	}
	defer backend.Close()

	wb := backend.(*whisperBackend)
	samples := make([]float32, 16000*3)

	if _, err := wb.Push(samples, 16000); err != nil {
		t.Fatalf("Push: %v", err)
	}
	firstCursor := wb.cursorS
	if firstCursor <= 0 {
		t.Fatalf("expected cursor to advance past the first window, got %v", firstCursor)
	}

	if _, err := wb.Push(samples, 16000); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if wb.cursorS <= firstCursor {
		t.Fatalf("expected cursor to keep advancing on a second window, got %v then %v", firstCursor, wb.cursorS)
	}
}
