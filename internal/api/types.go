package api

// startSessionRequest is the POST /start_session body.
type startSessionRequest struct {
	SessionID    string              `json:"session_id"`
	Model        string              `json:"model"`
	SampleRate   int                 `json:"sample_rate"`
	UserSettings userSettingsRequest `json:"user_settings"`
}

type userSettingsRequest struct {
	ChunkSummaryPrompt   string `json:"chunk_summary_prompt"`
	FinalSummaryPrompt   string `json:"final_summary_prompt"`
	DataExtractionPrompt string `json:"data_extraction_prompt"`
	LLMModelName         string `json:"llm_model_name"`
	OutputDir            string `json:"output_dir"`
	CSVExportPath        string `json:"csv_export_path"`
	AppendCSV            bool   `json:"append_csv"`
}

type okResponse struct {
	Status string `json:"status"`
}

// audioChunkRequest is the POST /audio_chunk body.
type audioChunkRequest struct {
	SessionID  string  `json:"session_id"`
	Timestamp  float64 `json:"timestamp"`
	PCMBase64  string  `json:"pcm_b64"`
	SampleRate int     `json:"sample_rate"`
}

type audioChunkResponse struct {
	Status          string  `json:"status"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	QueueDepth      int     `json:"queue_depth"`
}

// stopSessionRequest is the POST /stop_session body.
type stopSessionRequest struct {
	SessionID string `json:"session_id"`
}

type stopSessionResponse struct {
	Status        string  `json:"status"`
	SummaryPath   *string `json:"summary_path"`
	DataPath      *string `json:"data_path"`
	CSVPath       *string `json:"csv_path"`
	SessionStatus string  `json:"session_status"`
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status        string   `json:"status"`
	EngineVersion string   `json:"engine_version"`
	APIVersion    string   `json:"api_version"`
	STTBackends   []string `json:"stt_backends"`
	LLMModels     []string `json:"llm_models"`
}

// errorResponse is the unified error envelope for any non-2xx
// response for any non-2xx response.
type errorResponse struct {
	Status    string         `json:"status"`
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
