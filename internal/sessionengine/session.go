// Package sessionengine implements the Session state machine, its MAP
// worker, and the process-wide Session Registry.
package sessionengine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sessionengine/internal/applog"
	"sessionengine/internal/audiocodec"
	"sessionengine/internal/engineerr"
	"sessionengine/internal/output"
	"sessionengine/internal/stt"
	"sessionengine/internal/summarize"
	"sessionengine/internal/transcript"
)

// Status is one of the Session state machine's states.
type Status string

const (
	StatusStarting            Status = "starting"
	StatusActive              Status = "active"
	StatusStopping            Status = "stopping"
	StatusCompleted           Status = "completed"
	StatusInsufficientContent Status = "insufficient_content"
	StatusFailed              Status = "failed"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusInsufficientContent, StatusFailed:
		return true
	default:
		return false
	}
}

// Config is the immutable-after-start Session configuration supplied
// by /start_session.
type Config struct {
	SessionID         string
	STTBackend        stt.Name
	STTModel          string
	CaptureSampleRate int
	LLMModel          string
	Prompts           summarize.PromptTemplates
	OutputDir         string
	CSVPath           string
	AppendCSV         bool

	ChunkDurationSeconds float64
	MaxQueueDepth        int
	StopDrainTimeout     time.Duration
	AudioSoftDeadline    time.Duration
}

// StopResult is the cached, idempotent result of Session.Stop.
type StopResult struct {
	SummaryPath   string
	DataPath      string
	CSVPath       string
	SessionStatus Status
}

// Session owns one recording lifecycle end to end: audio decode
// feeding STT, emitted segments feeding the transcript buffer, a
// dedicated MAP worker driving summarization, and persistence at
// stop.
type Session struct {
	id  string
	cfg Config

	mu     sync.Mutex
	status Status

	sttMu sync.Mutex
	stt   stt.Transcriber

	buffer     *transcript.Buffer
	summarizer *summarize.Summarizer
	writer     *output.Writer

	chunkSummaries   []summarize.ChunkSummary
	chunkSummariesMu sync.Mutex

	bufferedSeconds   atomicFloat
	totalAudioSeconds atomicFloat
	totalSegments     int64
	chunkCount        int64

	stopSignal chan struct{}
	workerDone chan struct{}
	stopOnce   sync.Once

	result   *StopResult
	resultMu sync.Mutex
}

// atomicFloat is a tiny helper around atomic.Uint64 bit-storage, since
// the standard library has no atomic.Float64 in the Go version the
// teacher targets.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// newSession constructs a Session in the "starting" state. The caller
// (Registry.Create) is responsible for transitioning it to "active"
// once STT/LLM construction succeeds.
func newSession(cfg Config, writer *output.Writer) *Session {
	return &Session{
		id:         cfg.SessionID,
		cfg:        cfg,
		status:     StatusStarting,
		buffer:     transcript.New(cfg.ChunkDurationSeconds),
		writer:     writer,
		stopSignal: make(chan struct{}),
		workerDone: make(chan struct{}),
	}
}

// start attaches the STT backend and Summarizer, then starts the MAP
// worker and transitions to "active". Called once by the Registry
// during /start_session, after both backends have been constructed.
func (s *Session) start(transcriber stt.Transcriber, summarizer *summarize.Summarizer) {
	s.mu.Lock()
	s.stt = transcriber
	s.summarizer = summarizer
	s.status = StatusActive
	s.mu.Unlock()

	go s.mapWorkerLoop()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) ID() string { return s.id }

// PushChunkResult is returned to the HTTP layer on /audio_chunk.
type PushChunkResult struct {
	BufferedSeconds float64
	QueueDepth      int
}

// PushChunk implements push_chunk: decode, push through STT under
// the session's mutex, fan segments into the transcript buffer, and
// apply backpressure.
func (s *Session) PushChunk(ctx context.Context, pcmB64 string, sampleRate int) (PushChunkResult, error) {
	status := s.Status()
	if status != StatusActive {
		if status == StatusStarting {
			return PushChunkResult{}, engineerr.New(engineerr.SessionNotReady, "session is still starting")
		}
		return PushChunkResult{}, engineerr.New(engineerr.SessionNotReady, fmt.Sprintf("session is in state %q", status))
	}

	samples, err := audiocodec.Decode(pcmB64, sampleRate)
	if err != nil {
		return PushChunkResult{}, err
	}

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.AudioSoftDeadline > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, s.cfg.AudioSoftDeadline)
		defer cancel()
	}

	segs, err := s.pushThroughSTT(deadlineCtx, samples, sampleRate)
	if err != nil {
		return PushChunkResult{}, err
	}

	for _, seg := range segs {
		s.buffer.Add(seg)
		atomic.AddInt64(&s.totalSegments, 1)
	}

	s.totalAudioSeconds.Store(s.totalAudioSeconds.Load() + audiocodec.DurationSeconds(len(samples), sampleRate))
	s.bufferedSeconds.Store(s.stt.BufferedSeconds())

	// queue_depth is pending segments not yet folded into a chunk plus
	// chunks sealed but not yet drained by the MAP worker.
	depth := s.buffer.PendingSegments() + len(s.buffer.Sealed())
	maxDepth := s.cfg.MaxQueueDepth
	if maxDepth <= 0 {
		maxDepth = 64
	}
	if depth > maxDepth {
		return PushChunkResult{}, engineerr.New(engineerr.EngineOverloaded, "transcript MAP queue is over capacity")
	}

	return PushChunkResult{
		BufferedSeconds: s.bufferedSeconds.Load(),
		QueueDepth:      depth,
	}, nil
}

func (s *Session) pushThroughSTT(ctx context.Context, samples []float32, sampleRate int) ([]transcript.Segment, error) {
	type pushResult struct {
		segs []transcript.Segment
		err  error
	}
	resCh := make(chan pushResult, 1)

	go func() {
		s.sttMu.Lock()
		defer s.sttMu.Unlock()
		segs, err := s.stt.Push(samples, sampleRate)
		resCh <- pushResult{segs, err}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, engineerr.New(engineerr.STTBackendFailure, r.err.Error())
		}
		return r.segs, nil
	case <-ctx.Done():
		return nil, engineerr.New(engineerr.STTBackendFailure, "STT push exceeded soft deadline")
	}
}

// mapWorkerLoop is the single long-lived MAP worker per session. It
// drains sealed chunks from the transcript buffer, invoking
// Summarizer.Map for each, until a stop signal has been received and
// the queue is empty.
func (s *Session) mapWorkerLoop() {
	defer close(s.workerDone)

	for chunk := range s.buffer.Sealed() {
		summary := s.summarizer.Map(context.Background(), chunk.Index, chunk.Text())
		s.chunkSummariesMu.Lock()
		s.chunkSummaries = append(s.chunkSummaries, summary)
		s.chunkSummariesMu.Unlock()
		atomic.AddInt64(&s.chunkCount, 1)
	}
}

// Stop runs the session's stop sequence. It is idempotent: a second
// call returns the cached StopResult without re-running
// finalization.
func (s *Session) Stop(ctx context.Context) (*StopResult, bool, error) {
	s.resultMu.Lock()
	if s.result != nil {
		r := *s.result
		s.resultMu.Unlock()
		return &r, true, nil
	}
	s.resultMu.Unlock()

	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		// Raced with a concurrent Stop that hasn't published result yet.
		return s.awaitResult(), true, nil
	}
	s.status = StatusStopping
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopSignal) })

	// Flush STT, feed remaining segments.
	s.sttMu.Lock()
	finalSegs, flushErr := s.stt.Flush()
	s.sttMu.Unlock()
	if flushErr != nil {
		applog.Error(s.id, "stt_flush_failed", flushErr)
	}
	for _, seg := range finalSegs {
		s.buffer.Add(seg)
		atomic.AddInt64(&s.totalSegments, 1)
	}

	s.buffer.ForceFinalize()
	s.buffer.Close()

	drainTimeout := s.cfg.StopDrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 120 * time.Second
	}
	select {
	case <-s.workerDone:
	case <-time.After(drainTimeout):
		return s.finalizeFailed(engineerr.MapStall, "MAP worker did not drain within the stop timeout")
	}

	fullText := s.buffer.FullText()
	s.chunkSummariesMu.Lock()
	summaries := append([]summarize.ChunkSummary(nil), s.chunkSummaries...)
	s.chunkSummariesMu.Unlock()

	var (
		finalSummary string
		meetingData  summarize.MeetingData
		finalStatus  Status
	)

	if summarize.IsLowContent(len(summaries), fullText) {
		finalStatus = StatusInsufficientContent
		finalSummary = summarize.LowContentPlaceholderSummary
		meetingData = summarize.Empty()
	} else {
		var err error
		finalSummary, err = s.summarizer.Reduce(ctx, summaries)
		if err != nil {
			return s.finalizeFailed(engineerr.LLMUnavailable, err.Error())
		}
		meetingData = s.summarizer.Extract(ctx, summaries)
		finalStatus = StatusCompleted
	}

	s.buffer.Purge()

	paths, writeErr := s.writer.Persist(output.Artifacts{
		SessionID:   s.id,
		Summary:     finalSummary,
		MeetingData: meetingData,
		CSVPath:     s.cfg.CSVPath,
		AppendCSV:   s.cfg.AppendCSV,
		OutputDir:   s.cfg.OutputDir,
		StoppedAt:   time.Now(),
	})
	if writeErr != nil {
		applog.Error(s.id, "output_write_failed", writeErr)
		if paths.SummaryPath == "" && paths.DataPath == "" && paths.CSVPath == "" {
			return s.finalizeFailed(engineerr.OutputWriteFailure, writeErr.Error())
		}
	}

	s.mu.Lock()
	s.status = finalStatus
	s.mu.Unlock()

	result := &StopResult{
		SummaryPath:   paths.SummaryPath,
		DataPath:      paths.DataPath,
		CSVPath:       paths.CSVPath,
		SessionStatus: finalStatus,
	}
	s.resultMu.Lock()
	s.result = result
	s.resultMu.Unlock()

	applog.Session(s.id, "stopped",
		applog.F("status", finalStatus),
		applog.F("chunks", atomic.LoadInt64(&s.chunkCount)),
		applog.F("segments", atomic.LoadInt64(&s.totalSegments)),
		applog.F("audio_seconds", s.totalAudioSeconds.Load()))

	out := *result
	return &out, false, nil
}

func (s *Session) finalizeFailed(code engineerr.Code, message string) (*StopResult, bool, error) {
	s.mu.Lock()
	s.status = StatusFailed
	s.mu.Unlock()

	result := &StopResult{SessionStatus: StatusFailed}
	s.resultMu.Lock()
	s.result = result
	s.resultMu.Unlock()

	applog.Error(s.id, "stop_failed", engineerr.New(code, message))
	out := *result
	return &out, false, engineerr.New(code, message)
}

func (s *Session) awaitResult() *StopResult {
	for i := 0; i < 1000; i++ {
		s.resultMu.Lock()
		if s.result != nil {
			r := *s.result
			s.resultMu.Unlock()
			return &r
		}
		s.resultMu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	return &StopResult{SessionStatus: s.Status()}
}

// MarkFailedForShutdown transitions an active/starting session to
// failed on process shutdown, best-effort, without running the full
// stop sequence, then attempts to persist whatever chunk summaries
// the MAP worker had already produced.
func (s *Session) MarkFailedForShutdown() {
	s.mu.Lock()
	wasTerminal := s.status.Terminal()
	if !wasTerminal {
		s.status = StatusFailed
	}
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopSignal) })

	if !wasTerminal {
		s.persistBestEffortForShutdown()
	}
}

// persistBestEffortForShutdown writes whatever MAP summaries had
// completed before shutdown, joined without a REDUCE pass (the LLM
// runtime is not called during shutdown). No-op if Stop already
// cached a result, or if no chunk was ever summarized.
func (s *Session) persistBestEffortForShutdown() {
	s.resultMu.Lock()
	alreadyResulted := s.result != nil
	s.resultMu.Unlock()
	if alreadyResulted {
		return
	}

	s.chunkSummariesMu.Lock()
	summaries := append([]summarize.ChunkSummary(nil), s.chunkSummaries...)
	s.chunkSummariesMu.Unlock()
	if len(summaries) == 0 {
		return
	}

	texts := make([]string, len(summaries))
	for i, cs := range summaries {
		texts[i] = cs.Text
	}

	paths, err := s.writer.Persist(output.Artifacts{
		SessionID:   s.id,
		Summary:     strings.Join(texts, "\n\n"),
		MeetingData: summarize.Empty(),
		CSVPath:     s.cfg.CSVPath,
		AppendCSV:   s.cfg.AppendCSV,
		OutputDir:   s.cfg.OutputDir,
		StoppedAt:   time.Now(),
	})
	if err != nil {
		applog.Error(s.id, "shutdown_persist_failed", err)
		return
	}

	result := &StopResult{
		SummaryPath:   paths.SummaryPath,
		DataPath:      paths.DataPath,
		CSVPath:       paths.CSVPath,
		SessionStatus: StatusFailed,
	}
	s.resultMu.Lock()
	if s.result == nil {
		s.result = result
	}
	s.resultMu.Unlock()
}

// Close releases the session's owned STT backend.
func (s *Session) Close() error {
	if s.stt != nil {
		return s.stt.Close()
	}
	return nil
}
