package summarize

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// meetingDataSchema is generated once at package init from the Go
// MeetingData struct via invopop/jsonschema, and reused both as
// Ollama's schema-constrained "format" payload and as the
// gojsonschema validator for the raw-JSON fallback path.
var meetingDataSchema = jsonschema.Reflect(&MeetingData{})

var meetingDataSchemaLoader = gojsonschema.NewGoLoader(meetingDataSchema)

// SchemaJSON returns the MeetingData JSON Schema as raw JSON, suitable
// for Ollama's format field when the runtime supports
// schema-constrained generation.
func SchemaJSON() ([]byte, error) {
	return json.Marshal(meetingDataSchema)
}

// ValidateMeetingDataJSON validates raw extraction output against the
// generated schema before unmarshalling.
func ValidateMeetingDataJSON(raw []byte) error {
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(meetingDataSchemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("extraction output failed schema validation: %v", result.Errors())
	}
	return nil
}
