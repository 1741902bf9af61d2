// Package summarize implements MAP/REDUCE LLM summarization and
// structured MeetingData extraction over a local Ollama runtime.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"sessionengine/internal/applog"
	"sessionengine/internal/engineerr"
)

const (
	defaultChunkPromptTemplate = "Summarize the following portion of a meeting transcript in 2-3 sentences, focusing on concrete facts discussed:\n\n{text}"
	defaultFinalPromptTemplate = "Combine the following chunk summaries from a single meeting into one coherent summary:\n\n{summaries_text}"
	defaultExtractPromptTemplate = "From the following meeting summaries, extract contacts, companies, and deals discussed. Return only JSON matching the given schema:\n\n{summaries_text}"

	mapMaxTokens     = 300
	reduceMaxTokens  = 1200
	extractMaxTokens = 1200

	placeholderChunkSummary = "[summary unavailable]"
)

// PromptTemplates carries the per-session overrides from
// /start_session's user_settings.
type PromptTemplates struct {
	ChunkSummaryPrompt   string
	FinalSummaryPrompt   string
	DataExtractionPrompt string
}

func (t PromptTemplates) chunkPrompt() string {
	if t.ChunkSummaryPrompt != "" {
		return t.ChunkSummaryPrompt
	}
	return defaultChunkPromptTemplate
}

func (t PromptTemplates) finalPrompt() string {
	if t.FinalSummaryPrompt != "" {
		return t.FinalSummaryPrompt
	}
	return defaultFinalPromptTemplate
}

func (t PromptTemplates) extractPrompt() string {
	if t.DataExtractionPrompt != "" {
		return t.DataExtractionPrompt
	}
	return defaultExtractPromptTemplate
}

// Summarizer wraps a local Ollama runtime with the MAP/REDUCE/extract
// operations the Session drives. One instance is constructed per
// session so distinct prompt templates and model names are isolated;
// the shared LLM call throttle is process-wide.
type Summarizer struct {
	client    *api.Client
	model     string
	prompts   PromptTemplates
	throttle  *semaphore.Weighted
	sessionID string
}

// Throttle is shared by every Session to enforce a configured
// max-concurrent-LLM-calls limit across the whole process.
type Throttle struct {
	sem *semaphore.Weighted
}

func NewThrottle(maxConcurrent int) *Throttle {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Throttle{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// New constructs a Summarizer bound to ollamaURL/model, using the
// shared process-wide throttle.
func New(sessionID, ollamaURL, model string, prompts PromptTemplates, throttle *Throttle) (*Summarizer, error) {
	base, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, engineerr.New(engineerr.LLMUnavailable, fmt.Sprintf("invalid ollama url: %v", err))
	}
	client := api.NewClient(base, http.DefaultClient)

	return &Summarizer{
		client:    client,
		model:     model,
		prompts:   prompts,
		throttle:  throttle.sem,
		sessionID: sessionID,
	}, nil
}

// CheckAvailable verifies the runtime is reachable and the configured
// model is present, returning LLM_UNAVAILABLE otherwise.
func (s *Summarizer) CheckAvailable(ctx context.Context) error {
	models, err := s.client.List(ctx)
	if err != nil {
		return engineerr.New(engineerr.LLMUnavailable, fmt.Sprintf("ollama runtime unreachable: %v", err))
	}
	for _, m := range models.Models {
		if m.Name == s.model || strings.TrimSuffix(m.Name, ":latest") == s.model {
			return nil
		}
	}
	return engineerr.Newf(engineerr.LLMUnavailable,
		fmt.Sprintf("model %q is not pulled", s.model),
		map[string]any{"hint": fmt.Sprintf("run: ollama pull %s", s.model)})
}

// ListModels returns the locally available model identifiers, used by
// GET /health.
func (s *Summarizer) ListModels(ctx context.Context) []string {
	models, err := s.client.List(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		names = append(names, m.Name)
	}
	return names
}

// Map produces one ChunkSummary for chunkText. Transient LLM errors
// are retried once; on persistent failure the summary becomes the
// fixed placeholder so REDUCE can still proceed.
func (s *Summarizer) Map(ctx context.Context, chunkIndex int, chunkText string) ChunkSummary {
	prompt := strings.Replace(s.prompts.chunkPrompt(), "{text}", chunkText, 1)

	text, err := s.completeWithRetry(ctx, prompt, mapMaxTokens)
	if err != nil {
		applog.Warn(s.sessionID, "map_failed", applog.F("chunk_index", chunkIndex))
		text = placeholderChunkSummary
	}
	return ChunkSummary{ChunkIndex: chunkIndex, Text: text}
}

// Reduce combines chunk summaries into the final summary text.
func (s *Summarizer) Reduce(ctx context.Context, summaries []ChunkSummary) (string, error) {
	joined := make([]string, len(summaries))
	for i, cs := range summaries {
		joined[i] = cs.Text
	}
	prompt := strings.Replace(s.prompts.finalPrompt(), "{summaries_text}", strings.Join(joined, "\n\n"), 1)

	text, err := s.completeWithRetry(ctx, prompt, reduceMaxTokens)
	if err != nil {
		return "", engineerr.New(engineerr.LLMUnavailable, fmt.Sprintf("reduce failed: %v", err))
	}
	return text, nil
}

// Extract requests schema-constrained MeetingData generation. It
// retries once on parse/validation failure using gjson to salvage the
// outermost JSON object from a noisy completion, and returns an empty
// MeetingData (logging EXTRACTION_FALLBACK) if both attempts fail.
func (s *Summarizer) Extract(ctx context.Context, summaries []ChunkSummary) MeetingData {
	joined := make([]string, len(summaries))
	for i, cs := range summaries {
		joined[i] = cs.Text
	}
	prompt := strings.Replace(s.prompts.extractPrompt(), "{summaries_text}", strings.Join(joined, "\n\n"), 1)

	schema, schemaErr := SchemaJSON()

	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.completeRawWithSchema(ctx, prompt, schema, schemaErr == nil)
		if err != nil {
			continue
		}
		candidate := extractOuterJSONObject(raw)
		if err := ValidateMeetingDataJSON([]byte(candidate)); err != nil {
			continue
		}
		var data MeetingData
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			continue
		}
		normalizeMeetingData(&data)
		return data
	}

	applog.Warn(s.sessionID, string(engineerr.ExtractionFallback))
	return Empty()
}

// normalizeMeetingData ensures array fields are never nil: empty, not
// null.
func normalizeMeetingData(d *MeetingData) {
	if d.Contacts == nil {
		d.Contacts = []Contact{}
	}
	if d.Companies == nil {
		d.Companies = []Company{}
	}
	if d.Deals == nil {
		d.Deals = []Deal{}
	}
	for i := range d.Companies {
		if d.Companies[i].CompetitorProducts == nil {
			d.Companies[i].CompetitorProducts = []string{}
		}
		if d.Companies[i].StrategiesOfInterest == nil {
			d.Companies[i].StrategiesOfInterest = []string{}
		}
	}
	for i := range d.Deals {
		if d.Deals[i].ProductsOfInterest == nil {
			d.Deals[i].ProductsOfInterest = []string{}
		}
	}
}

// extractOuterJSONObject locates the outermost {...} span in raw,
// tolerating leading/trailing prose a non-schema-constrained model
// might emit. Falls back to the original string if gjson can't find a
// parseable object.
func extractOuterJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	candidate := raw[start : end+1]
	if !gjson.Valid(candidate) {
		return raw
	}
	return candidate
}

// completeWithRetry performs a plain-text completion, retrying once
// on error.
func (s *Summarizer) completeWithRetry(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		text, err := s.complete(ctx, prompt, nil, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (s *Summarizer) completeRawWithSchema(ctx context.Context, prompt string, schema []byte, useSchema bool) (string, error) {
	var format json.RawMessage
	if useSchema {
		format = schema
	}
	return s.complete(ctx, prompt, format, extractMaxTokens)
}

// complete issues a single chat completion against Ollama, acquiring
// the process-wide throttle for the duration of the call.
func (s *Summarizer) complete(ctx context.Context, prompt string, format json.RawMessage, maxTokens int) (string, error) {
	if err := s.throttle.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.throttle.Release(1)

	req := &api.ChatRequest{
		Model: s.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: boolPtr(false),
		Format: format,
		Options: map[string]any{
			"temperature": 0.3,
			"num_predict": maxTokens,
		},
	}

	var out strings.Builder
	err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func boolPtr(b bool) *bool { return &b }
