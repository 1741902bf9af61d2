// Package applog centralizes the engine's logging discipline: plain
// log.Printf lines with a fixed, metadata-only field order so that
// production logs never carry transcript text, prompts, or summaries.
package applog

import (
	"fmt"
	"log"
	"strings"
)

// Setup configures the standard logger the way the engine's bootstrap
// wants it: timestamps with microsecond resolution and source file
// info.
func Setup() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
}

// Field is a single metadata key/value pair for a session log line.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Session logs one line about a session, in a fixed field order:
// session id first, then the supplied fields. Never pass transcript
// text, chunk text, summaries, or prompts as a field value.
func Session(sessionID, event string, fields ...Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "session=%s event=%s", sessionID, event)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	log.Println(b.String())
}

// Warn logs a warning-level event (e.g. EXTRACTION_FALLBACK) with the
// same field discipline as Session.
func Warn(sessionID, event string, fields ...Field) {
	Session(sessionID, "WARN:"+event, fields...)
}

// Error logs an error-level event.
func Error(sessionID, event string, err error, fields ...Field) {
	fields = append(fields, F("error", err))
	Session(sessionID, "ERROR:"+event, fields...)
}
