// Package ingest decodes wire-format log entries from the HTTP batch and
// TCP line surfaces into canonical model entries.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// FallbackCorrelationID tags entries that arrive with no correlation id
// of their own and no out-of-band id.
const FallbackCorrelationID = "unknown"

// Entry is the wire shape of one ingested log entry. Level, source, and
// timestamp are looser than the canonical types: layers emit level
// aliases (WARNING, ERR) and timestamps as RFC 3339 strings or epoch
// numbers.
type Entry struct {
	model.LogEntry
	Timestamp json.RawMessage `json:"timestamp"`
	Level     string          `json:"level"`
	Source    string          `json:"source"`
}

// Batch is the HTTP ingestion envelope.
type Batch struct {
	Logs []Entry `json:"logs"`
}

// Convert normalizes a wire entry into a canonical LogEntry. An empty
// correlation id falls back to the out-of-band id, then to
// FallbackCorrelationID. A missing timestamp defaults to now.
func (e Entry) Convert(fallbackID string, now time.Time) (model.LogEntry, error) {
	out := e.LogEntry

	level, ok := model.ParseLevel(e.Level)
	if !ok {
		return model.LogEntry{}, fmt.Errorf("ingest: unknown level %q", e.Level)
	}
	out.Level = level

	out.Source = model.Source(strings.ToLower(strings.TrimSpace(e.Source)))
	if !out.Source.Valid() {
		return model.LogEntry{}, fmt.Errorf("ingest: unknown source %q", e.Source)
	}

	if strings.TrimSpace(out.CorrelationID) == "" {
		out.CorrelationID = fallbackID
	}
	if strings.TrimSpace(out.CorrelationID) == "" {
		out.CorrelationID = FallbackCorrelationID
	}

	ts, err := parseTimestamp(e.Timestamp, now)
	if err != nil {
		return model.LogEntry{}, err
	}
	out.Timestamp = ts

	return out, nil
}

// DecodeLine decodes one newline-delimited JSON entry (the TCP surface).
func DecodeLine(line []byte, now time.Time) (model.LogEntry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return model.LogEntry{}, fmt.Errorf("ingest: parse line: %w", err)
	}
	return e.Convert("", now)
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return now, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timestampLayouts {
			if ts, perr := time.Parse(layout, s); perr == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("ingest: unparseable timestamp %q", s)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		// Values above ~2001-09 in milliseconds are epoch millis; below
		// that, epoch seconds.
		if n > 1e12 {
			return time.UnixMilli(int64(n)), nil
		}
		return time.Unix(int64(n), 0), nil
	}

	return time.Time{}, fmt.Errorf("ingest: unparseable timestamp %s", raw)
}
