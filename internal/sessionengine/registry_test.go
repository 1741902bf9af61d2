package sessionengine

import (
	"context"
	"testing"

	"sessionengine/internal/engineerr"
	"sessionengine/internal/output"
	"sessionengine/internal/summarize"
)

func newTestRegistry() *Registry {
	return NewRegistry(output.New(), summarize.NewThrottle(1), RuntimeOptions{
		ChunkDurationSeconds: 60,
		MaxQueueDepth:        64,
	})
}

func TestCreateRejectsNonUUIDSessionID(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(context.Background(), NewSessionParams{
		SessionID:      "not-a-uuid",
		STTBackendName: "whisper",
	})
	e, ok := engineerr.As(err)
	if !ok || e.Code != engineerr.InvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestCreateRejectsUnrecognizedBackend(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(context.Background(), NewSessionParams{
		SessionID:      "11111111-1111-1111-1111-111111111111",
		STTBackendName: "not-a-backend",
	})
	e, ok := engineerr.As(err)
	if !ok || e.Code != engineerr.InvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestHistoryAndGetMissOnUnknownSession(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.Get("11111111-1111-1111-1111-111111111111"); ok {
		t.Error("expected Get to miss for an id never created")
	}
	if _, ok := r.History("11111111-1111-1111-1111-111111111111"); ok {
		t.Error("expected History to miss for an id never created")
	}
}

func TestRetireMovesSessionFromLiveToHistory(t *testing.T) {
	r := newTestRegistry()
	cfg := Config{SessionID: "11111111-1111-1111-1111-111111111111"}
	s := newSession(cfg, output.New())

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.active = s
	r.mu.Unlock()

	r.Retire(s)

	if _, ok := r.Get(s.ID()); ok {
		t.Error("expected session to no longer be live after Retire")
	}
	if _, ok := r.History(s.ID()); !ok {
		t.Error("expected session to be found in history after Retire")
	}
}

func TestActiveSessionsReflectsLiveMap(t *testing.T) {
	r := newTestRegistry()
	if got := len(r.ActiveSessions()); got != 0 {
		t.Fatalf("expected zero active sessions initially, got %d", got)
	}

	cfg := Config{SessionID: "11111111-1111-1111-1111-111111111111"}
	s := newSession(cfg, output.New())
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	if got := len(r.ActiveSessions()); got != 1 {
		t.Fatalf("expected one active session, got %d", got)
	}
}
