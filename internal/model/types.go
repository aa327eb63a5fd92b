package model

import (
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Valid reports whether l is one of the recognized levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// ParseLevel normalizes a level string, accepting common aliases
// (WARNING, ERR, FATAL) emitted by the application layers.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error", "err", "fatal", "critical":
		return LevelError, true
	}
	return "", false
}

// Source identifies the application layer that emitted a log entry.
type Source string

const (
	SourceFrontend   Source = "frontend"
	SourceBackend    Source = "backend"
	SourceDatabase   Source = "database"
	SourceMiddleware Source = "middleware"
)

// Valid reports whether s is one of the recognized sources.
func (s Source) Valid() bool {
	switch s {
	case SourceFrontend, SourceBackend, SourceDatabase, SourceMiddleware:
		return true
	}
	return false
}

// LogEntry is a single immutable log event tagged with a correlation id.
// Entries are written once by the emitting layer and never mutated.
//
// ResponseTimeMS and QueryDurationMS are pointers because presence, not
// value, decides whether an entry counts as an API call or database query.
type LogEntry struct {
	Timestamp     time.Time         `json:"timestamp"`
	Level         Level             `json:"level"`
	Message       string            `json:"message"`
	Source        Source            `json:"source"`
	CorrelationID string            `json:"correlationId"`
	UserID        string            `json:"userId,omitempty"`
	SessionID     string            `json:"sessionId,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
	StackTrace    string            `json:"stackTrace,omitempty"`

	// Backend-specific fields.
	RequestMethod  string   `json:"requestMethod,omitempty"`
	RequestURL     string   `json:"requestUrl,omitempty"`
	StatusCode     int      `json:"statusCode,omitempty"`
	ResponseTimeMS *float64 `json:"responseTimeMs,omitempty"`

	// Database-specific fields.
	SQLQuery        string   `json:"sqlQuery,omitempty"`
	QueryParams     string   `json:"queryParams,omitempty"`
	QueryDurationMS *float64 `json:"queryDurationMs,omitempty"`

	// Frontend-specific fields.
	UserAction string `json:"userAction,omitempty"`
	Component  string `json:"component,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e LogEntry) Clone() LogEntry {
	out := e
	if e.Context != nil {
		ctx := make(map[string]string, len(e.Context))
		for k, v := range e.Context {
			ctx[k] = v
		}
		out.Context = ctx
	}
	if e.ResponseTimeMS != nil {
		v := *e.ResponseTimeMS
		out.ResponseTimeMS = &v
	}
	if e.QueryDurationMS != nil {
		v := *e.QueryDurationMS
		out.QueryDurationMS = &v
	}
	return out
}

// BufferStats summarizes the current contents of the correlation buffer.
type BufferStats struct {
	Groups  int `json:"groups"`
	Entries int `json:"entries"`
}
