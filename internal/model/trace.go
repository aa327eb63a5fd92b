package model

import "time"

// Performance issue types reported by the workflow analyzer.
const (
	IssueSlowQuery   = "slow_query"
	IssueSlowAPICall = "slow_api_call"
)

// PerformanceIssue flags a single slow operation found inside a trace.
// QueryPrefix is set for slow_query issues, URL for slow_api_call.
type PerformanceIssue struct {
	Type        string    `json:"type"`
	DurationMS  float64   `json:"duration_ms"`
	QueryPrefix string    `json:"query_prefix,omitempty"`
	URL         string    `json:"url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorSample is one error-level entry surfaced in a trace summary.
type ErrorSample struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

// TraceAnalysis holds the derived metrics for one correlation group.
type TraceAnalysis struct {
	TotalDurationMS      int64              `json:"total_duration_ms"`
	ErrorCount           int                `json:"error_count"`
	WarningCount         int                `json:"warning_count"`
	DatabaseQueryCount   int                `json:"database_query_count"`
	APICallCount         int                `json:"api_call_count"`
	UserInteractionCount int                `json:"user_interaction_count"`
	PerformanceIssues    []PerformanceIssue `json:"performance_issues"`
	ErrorSummary         []ErrorSample      `json:"error_summary"`
	LayerBreakdown       map[Source]int     `json:"layer_breakdown"`
}

// WorkflowTrace is the analyzed, read-only view of one correlation group.
// It is recomputed on every request and never stored.
type WorkflowTrace struct {
	CorrelationID string        `json:"correlation_id"`
	Entries       []LogEntry    `json:"entries"`
	Analysis      TraceAnalysis `json:"analysis"`
}

// ErrorPattern aggregates error entries sharing one message prefix.
type ErrorPattern struct {
	Count          int       `json:"count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Sources        []string  `json:"sources"`
	CorrelationIDs []string  `json:"correlation_ids"`
}

// PatternReport is the window-scoped error clustering summary.
type PatternReport struct {
	TotalErrors    int                      `json:"total_errors"`
	UniquePatterns int                      `json:"unique_patterns"`
	Patterns       map[string]*ErrorPattern `json:"patterns"`
}
