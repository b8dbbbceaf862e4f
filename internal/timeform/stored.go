package timeform

import (
	"fmt"
	"strings"
	"time"
)

// storedLayout is the canonical encoding for newly persisted instants.
const storedLayout = time.RFC3339Nano

// FormatStored renders an instant the way this repo persists it: RFC3339Nano,
// always UTC.
func FormatStored(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

// storedLayouts is the fallback ladder, tried strictly in order: offset-aware
// encodings first, then naive legacy encodings. Layouts without a zone part
// parse as UTC by construction, which matches the convention those rows were
// written under. Supporting another legacy encoding is a one-line addition.
var storedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999", // legacy rows, microsecond precision
	"2006-01-02 15:04:05",        // legacy rows, second precision
	"2006-01-02T15:04:05",        // legacy ISO-ish rows
}

// ParseStored decodes a persisted timestamp that may come from any historical
// schema revision. A value matching no known encoding is corrupt; the caller
// decides what to do with the row (the scanner skips and counts it).
func ParseStored(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range storedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q matches no known encoding", s)
}
