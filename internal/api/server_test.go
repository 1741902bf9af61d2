package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sessionengine/internal/output"
	"sessionengine/internal/sessionengine"
	"sessionengine/internal/summarize"
)

func newTestServer(authToken string) *Server {
	registry := sessionengine.NewRegistry(output.New(), summarize.NewThrottle(1), sessionengine.RuntimeOptions{
		ChunkDurationSeconds: 60,
		MaxQueueDepth:        64,
	})
	return NewServer(registry, authToken, nil)
}

func TestHealthEndpointNeverRequiresAuth(t *testing.T) {
	srv := newTestServer("secret-token")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d want 200", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.APIVersion != "1" {
		t.Errorf("unexpected health body: %+v", body)
	}
	if len(body.STTBackends) == 0 {
		t.Error("expected at least one advertised STT backend")
	}
}

func TestProtectedEndpointsRequireAuthToken(t *testing.T) {
	srv := newTestServer("secret-token")

	req := httptest.NewRequest(http.MethodPost, "/start_session", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d want 401", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ErrorCode != "UNAUTHORIZED" {
		t.Errorf("got error_code %q want UNAUTHORIZED", body.ErrorCode)
	}
}

func TestProtectedEndpointsAcceptValidToken(t *testing.T) {
	srv := newTestServer("secret-token")

	req := httptest.NewRequest(http.MethodPost, "/start_session", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Engine-Token", "secret-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Auth passes, but the empty body should fail request validation,
	// not authentication.
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("valid token should not be rejected as unauthorized")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d want 400 for an empty start_session body", rec.Code)
	}
}

func TestAudioChunkUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer("")

	body := `{"session_id":"11111111-1111-1111-1111-111111111111","pcm_b64":"AAAA","sample_rate":16000}`
	req := httptest.NewRequest(http.MethodPost, "/audio_chunk", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d want 404", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ErrorCode != "SESSION_NOT_FOUND" {
		t.Errorf("got error_code %q want SESSION_NOT_FOUND", resp.ErrorCode)
	}
}

func TestStopSessionUnknownIDReturns404(t *testing.T) {
	srv := newTestServer("")

	body := `{"session_id":"22222222-2222-2222-2222-222222222222"}`
	req := httptest.NewRequest(http.MethodPost, "/stop_session", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d want 404", rec.Code)
	}
}

func TestStartSessionMalformedJSONReturnsInvalidRequest(t *testing.T) {
	srv := newTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/start_session", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ErrorCode != "INVALID_REQUEST" {
		t.Errorf("got error_code %q want INVALID_REQUEST", resp.ErrorCode)
	}
}
