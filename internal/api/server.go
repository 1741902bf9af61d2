// Package api implements the loopback-only HTTP surface
// (/health, /start_session, /audio_chunk, /stop_session) over
// net/http.ServeMux, with the engine's token authentication and a
// unified error envelope.
package api

import (
	"encoding/json"
	"net/http"

	"sessionengine/internal/applog"
	"sessionengine/internal/engineerr"
	"sessionengine/internal/sessionengine"
	"sessionengine/internal/stt"
	"sessionengine/internal/summarize"
)

const (
	engineVersion = "0.1.0"
	apiVersion    = "1"
)

// Server wires the Registry into HTTP handlers.
type Server struct {
	registry  *sessionengine.Registry
	authToken string
	llmLister func() []string
}

// NewServer constructs the HTTP handler tree. llmLister, when non-nil,
// is called for GET /health to discover locally available LLM model
// identifiers without requiring an active session.
func NewServer(registry *sessionengine.Registry, authToken string, llmLister func() []string) *Server {
	return &Server{registry: registry, authToken: authToken, llmLister: llmLister}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /start_session", s.withAuth(s.handleStartSession))
	mux.HandleFunc("POST /audio_chunk", s.withAuth(s.handleAudioChunk))
	mux.HandleFunc("POST /stop_session", s.withAuth(s.handleStopSession))
	return mux
}

// withAuth enforces X-Engine-Token when ENGINE_AUTH_TOKEN is
// non-empty. /health is never gated.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && r.Header.Get("X-Engine-Token") != s.authToken {
			writeError(w, engineerr.New(engineerr.Unauthorized, "missing or invalid X-Engine-Token"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var models []string
	if s.llmLister != nil {
		models = s.llmLister()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		EngineVersion: engineVersion,
		APIVersion:    apiVersion,
		STTBackends:   stt.AdvertisedBackends(),
		LLMModels:     models,
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "malformed JSON body"))
		return
	}
	if req.SessionID == "" || req.Model == "" || req.SampleRate == 0 {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "session_id, model, and sample_rate are required"))
		return
	}

	params := sessionengine.NewSessionParams{
		SessionID:         req.SessionID,
		STTBackendName:    req.Model,
		CaptureSampleRate: req.SampleRate,
		LLMModel:          req.UserSettings.LLMModelName,
		Prompts: summarize.PromptTemplates{
			ChunkSummaryPrompt:   req.UserSettings.ChunkSummaryPrompt,
			FinalSummaryPrompt:   req.UserSettings.FinalSummaryPrompt,
			DataExtractionPrompt: req.UserSettings.DataExtractionPrompt,
		},
		OutputDir: req.UserSettings.OutputDir,
		CSVPath:   req.UserSettings.CSVExportPath,
		AppendCSV: req.UserSettings.AppendCSV,
	}

	if _, err := s.registry.Create(r.Context(), params); err != nil {
		writeError(w, err)
		return
	}

	applog.Session(req.SessionID, "started", applog.F("backend", req.Model), applog.F("sample_rate", req.SampleRate))
	writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (s *Server) handleAudioChunk(w http.ResponseWriter, r *http.Request) {
	var req audioChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "malformed JSON body"))
		return
	}
	if req.SessionID == "" || req.PCMBase64 == "" || req.SampleRate == 0 {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "session_id, pcm_b64, and sample_rate are required"))
		return
	}

	session, ok := s.registry.Get(req.SessionID)
	if !ok {
		writeError(w, engineerr.New(engineerr.SessionNotFound, "no active session with this id"))
		return
	}

	result, err := session.PushChunk(r.Context(), req.PCMBase64, req.SampleRate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, audioChunkResponse{
		Status:          "ok",
		BufferedSeconds: result.BufferedSeconds,
		QueueDepth:      result.QueueDepth,
	})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "malformed JSON body"))
		return
	}
	if req.SessionID == "" {
		writeError(w, engineerr.New(engineerr.InvalidRequest, "session_id is required"))
		return
	}

	session, ok := s.registry.Get(req.SessionID)
	if !ok {
		if historical, found := s.registry.History(req.SessionID); found {
			result, _, _ := historical.Stop(r.Context())
			writeJSON(w, http.StatusOK, stopResponseFrom("already_stopped", result))
			return
		}
		writeError(w, engineerr.New(engineerr.SessionNotFound, "no session with this id"))
		return
	}

	result, alreadyStopped, err := session.Stop(r.Context())
	if session.Status().Terminal() {
		s.registry.Retire(session)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	status := "ok"
	if alreadyStopped {
		status = "already_stopped"
	}
	writeJSON(w, http.StatusOK, stopResponseFrom(status, result))
}

func stopResponseFrom(status string, result *sessionengine.StopResult) stopSessionResponse {
	return stopSessionResponse{
		Status:        status,
		SummaryPath:   nullableString(result.SummaryPath),
		DataPath:      nullableString(result.DataPath),
		CSVPath:       nullableString(result.CSVPath),
		SessionStatus: string(result.SessionStatus),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	engineErr, ok := engineerr.As(err)
	if !ok {
		applog.Error("", "unhandled_error", err)
		engineErr = engineerr.New(engineerr.InternalError, "an unexpected error occurred")
	}
	writeJSON(w, engineErr.HTTPStatus(), errorResponse{
		Status:    "error",
		ErrorCode: string(engineErr.Code),
		Message:   engineErr.Message,
		Details:   engineErr.Details,
	})
}
