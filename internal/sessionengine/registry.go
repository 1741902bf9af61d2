package sessionengine

import (
	"container/ring"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sessionengine/internal/engineerr"
	"sessionengine/internal/output"
	"sessionengine/internal/stt"
	"sessionengine/internal/summarize"
)

// historySize is the minimum terminal-session history depth required
// so that a stop_session retry against a recently-finished session
// still resolves to "already_stopped" instead of SESSION_NOT_FOUND.
const historySize = 16

// NewSessionParams is everything the HTTP layer collects from
// /start_session to construct a Session.
type NewSessionParams struct {
	SessionID         string
	STTBackendName    string
	CaptureSampleRate int
	LLMModel          string
	Prompts           summarize.PromptTemplates
	OutputDir         string
	CSVPath           string
	AppendCSV         bool
}

// RuntimeOptions are process-wide defaults applied to every Session,
// sourced from Config at bootstrap.
type RuntimeOptions struct {
	ChunkDurationSeconds float64
	MaxQueueDepth        int
	StopDrainTimeout     time.Duration
	AudioSoftDeadline    time.Duration
	OllamaURL            string
	DevMode              bool

	// WhisperModelPath/ParakeetModelPath are the on-disk model
	// identifiers for each backend; the wire request only names the
	// backend, not a model path, so these are sourced from process
	// configuration instead of NewSessionParams.
	WhisperModelPath  string
	ParakeetModelPath string
}

func (o RuntimeOptions) modelIdentifierFor(backend stt.Name) string {
	switch backend {
	case stt.Whisper:
		return o.WhisperModelPath
	case stt.Parakeet:
		return o.ParakeetModelPath
	default:
		return ""
	}
}

// Registry is the process-wide Session directory: a live map plus a
// bounded ring of terminal sessions, so a second stop_session for an
// already-finished session can be answered idempotently instead of
// looking like a 404. Only one session may be active at a time; this
// is the engine's default single-active-session policy.
type Registry struct {
	mu       sync.Mutex
	active   *Session
	sessions map[string]*Session

	history     *ring.Ring
	historyByID map[string]*Session

	writer   *output.Writer
	throttle *summarize.Throttle
	opts     RuntimeOptions
}

func NewRegistry(writer *output.Writer, throttle *summarize.Throttle, opts RuntimeOptions) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		history:     ring.New(historySize),
		historyByID: make(map[string]*Session, historySize),
		writer:      writer,
		throttle:    throttle,
		opts:        opts,
	}
}

// Create validates and constructs a new Session, builds its STT
// backend and Summarizer, verifies LLM availability, and starts the
// MAP worker. It enforces the single-active-session policy and
// session_id uniqueness.
func (r *Registry) Create(ctx context.Context, p NewSessionParams) (*Session, error) {
	if _, err := uuid.Parse(p.SessionID); err != nil {
		return nil, engineerr.New(engineerr.InvalidRequest, "session_id must be a valid UUID")
	}
	if !stt.IsRecognized(p.STTBackendName) {
		return nil, engineerr.New(engineerr.InvalidRequest, fmt.Sprintf("unrecognized stt_backend %q", p.STTBackendName))
	}

	r.mu.Lock()
	if _, exists := r.sessions[p.SessionID]; exists {
		r.mu.Unlock()
		return nil, engineerr.New(engineerr.SessionAlreadyExists, fmt.Sprintf("session %s already exists", p.SessionID))
	}
	if _, exists := r.historyByID[p.SessionID]; exists {
		r.mu.Unlock()
		return nil, engineerr.New(engineerr.SessionAlreadyExists, fmt.Sprintf("session %s already exists", p.SessionID))
	}
	if r.active != nil {
		r.mu.Unlock()
		return nil, engineerr.New(engineerr.SessionAlreadyActive, fmt.Sprintf("session %s is already active", r.active.ID()))
	}

	cfg := Config{
		SessionID:            p.SessionID,
		STTBackend:           stt.Name(p.STTBackendName),
		STTModel:             r.opts.modelIdentifierFor(stt.Name(p.STTBackendName)),
		CaptureSampleRate:    p.CaptureSampleRate,
		LLMModel:             p.LLMModel,
		Prompts:              p.Prompts,
		OutputDir:            p.OutputDir,
		CSVPath:              p.CSVPath,
		AppendCSV:            p.AppendCSV,
		ChunkDurationSeconds: r.opts.ChunkDurationSeconds,
		MaxQueueDepth:        r.opts.MaxQueueDepth,
		StopDrainTimeout:     r.opts.StopDrainTimeout,
		AudioSoftDeadline:    r.opts.AudioSoftDeadline,
	}

	session := newSession(cfg, r.writer)
	r.sessions[p.SessionID] = session
	r.active = session
	r.mu.Unlock()

	transcriber, err := stt.New(cfg.STTBackend, cfg.CaptureSampleRate, cfg.STTModel, r.opts.DevMode)
	if err != nil {
		r.abortCreate(p.SessionID)
		return nil, err
	}

	summarizer, err := summarize.New(p.SessionID, r.opts.OllamaURL, p.LLMModel, p.Prompts, r.throttle)
	if err != nil {
		transcriber.Close()
		r.abortCreate(p.SessionID)
		return nil, err
	}
	if err := summarizer.CheckAvailable(ctx); err != nil {
		transcriber.Close()
		r.abortCreate(p.SessionID)
		return nil, err
	}

	session.start(transcriber, summarizer)
	return session, nil
}

// abortCreate removes a Session that failed construction before it
// ever became active, freeing the active slot for a retry.
func (r *Registry) abortCreate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	if r.active != nil && r.active.ID() == sessionID {
		r.active = nil
	}
}

// Get returns the live Session for sessionID, or nil if it isn't
// currently active (it may still be resolvable via History).
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// History returns a terminal Session previously tracked by this
// registry, so a repeated stop_session resolves to "already_stopped"
// instead of SESSION_NOT_FOUND.
func (r *Registry) History(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.historyByID[sessionID]
	return s, ok
}

// Retire moves a Session from the live map into the bounded terminal
// history, evicting the oldest entry once historySize is exceeded.
// Called by the HTTP layer once Stop has returned a terminal result.
func (r *Registry) Retire(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, session.ID())
	if r.active != nil && r.active.ID() == session.ID() {
		r.active = nil
	}

	if evicted, ok := r.history.Value.(*Session); ok && evicted != nil {
		delete(r.historyByID, evicted.ID())
	}
	r.history.Value = session
	r.history = r.history.Next()
	r.historyByID[session.ID()] = session
}

// ActiveSessions returns every Session the registry currently
// considers live, used by graceful shutdown to mark them failed.
func (r *Registry) ActiveSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
