// Package analyzer derives workflow traces and error pattern reports from
// buffered correlation groups. Both views are recomputed per request and
// never stored.
package analyzer

import (
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// Fixed performance thresholds. These are design constants, not user
// configuration: operational thresholds belong to the alert evaluator.
const (
	slowQueryThresholdMS = 100
	slowAPIThresholdMS   = 1000

	queryPrefixLen = 100
)

// Analyzer computes derived views over a correlation entry reader.
type Analyzer struct {
	reader model.EntryReader
	now    func() time.Time
}

// New creates an analyzer over the given reader.
func New(reader model.EntryReader) *Analyzer {
	return &Analyzer{
		reader: reader,
		now:    time.Now,
	}
}

// Trace reconstructs the causally ordered workflow for one correlation id
// and computes its analysis in a single pass. An unknown id yields an
// empty trace.
func (a *Analyzer) Trace(correlationID string) model.WorkflowTrace {
	entries := a.reader.Entries(correlationID)

	trace := model.WorkflowTrace{
		CorrelationID: correlationID,
		Entries:       entries,
		Analysis: model.TraceAnalysis{
			PerformanceIssues: []model.PerformanceIssue{},
			ErrorSummary:      []model.ErrorSample{},
			LayerBreakdown:    map[model.Source]int{},
		},
	}
	if len(entries) == 0 {
		return trace
	}

	// Entries arrive sorted ascending, so the span is last minus first.
	first := entries[0].Timestamp
	last := entries[len(entries)-1].Timestamp
	trace.Analysis.TotalDurationMS = last.Sub(first).Milliseconds()

	for _, e := range entries {
		switch e.Level {
		case model.LevelError:
			trace.Analysis.ErrorCount++
			trace.Analysis.ErrorSummary = append(trace.Analysis.ErrorSummary, model.ErrorSample{
				Message:   e.Message,
				Timestamp: e.Timestamp,
				Source:    e.Source,
			})
		case model.LevelWarn:
			trace.Analysis.WarningCount++
		}

		trace.Analysis.LayerBreakdown[e.Source]++

		if e.QueryDurationMS != nil {
			trace.Analysis.DatabaseQueryCount++
			if *e.QueryDurationMS > slowQueryThresholdMS {
				trace.Analysis.PerformanceIssues = append(trace.Analysis.PerformanceIssues, model.PerformanceIssue{
					Type:        model.IssueSlowQuery,
					DurationMS:  *e.QueryDurationMS,
					QueryPrefix: truncate(e.SQLQuery, queryPrefixLen),
					Timestamp:   e.Timestamp,
				})
			}
		}

		if e.ResponseTimeMS != nil {
			trace.Analysis.APICallCount++
			if *e.ResponseTimeMS > slowAPIThresholdMS {
				trace.Analysis.PerformanceIssues = append(trace.Analysis.PerformanceIssues, model.PerformanceIssue{
					Type:       model.IssueSlowAPICall,
					DurationMS: *e.ResponseTimeMS,
					URL:        e.RequestURL,
					Timestamp:  e.Timestamp,
				})
			}
		}

		if e.UserAction != "" {
			trace.Analysis.UserInteractionCount++
		}
	}

	return trace
}

// truncate keeps the first n characters. Counting runes rather than
// bytes keeps pattern keys and query prefixes valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
