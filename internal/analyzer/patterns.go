package analyzer

import (
	"sort"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// patternPrefixLen is the number of leading message characters used as a
// pattern key. Messages sharing a prefix almost always share a template
// ("payment gateway timeout for order ..."), so this cheap clustering
// groups recurring failures without template mining.
const patternPrefixLen = 50

type patternAccumulator struct {
	pattern        model.ErrorPattern
	sources        map[string]struct{}
	correlationIDs map[string]struct{}
}

// Patterns clusters error-level entries across all correlation ids within
// the trailing window. Purely a reporting view; no side effects.
func (a *Analyzer) Patterns(window time.Duration) model.PatternReport {
	now := a.now()
	errors := a.reader.Search(model.SearchQuery{
		Level: model.LevelError,
		Start: now.Add(-window),
		End:   now,
	})

	acc := make(map[string]*patternAccumulator)
	for _, e := range errors {
		key := truncate(e.Message, patternPrefixLen)
		p, ok := acc[key]
		if !ok {
			p = &patternAccumulator{
				pattern: model.ErrorPattern{
					FirstSeen: e.Timestamp,
					LastSeen:  e.Timestamp,
				},
				sources:        make(map[string]struct{}),
				correlationIDs: make(map[string]struct{}),
			}
			acc[key] = p
		}
		p.pattern.Count++
		if e.Timestamp.Before(p.pattern.FirstSeen) {
			p.pattern.FirstSeen = e.Timestamp
		}
		if e.Timestamp.After(p.pattern.LastSeen) {
			p.pattern.LastSeen = e.Timestamp
		}
		p.sources[string(e.Source)] = struct{}{}
		p.correlationIDs[e.CorrelationID] = struct{}{}
	}

	report := model.PatternReport{
		TotalErrors:    len(errors),
		UniquePatterns: len(acc),
		Patterns:       make(map[string]*model.ErrorPattern, len(acc)),
	}
	for key, p := range acc {
		pattern := p.pattern
		pattern.Sources = sortedKeys(p.sources)
		pattern.CorrelationIDs = sortedKeys(p.correlationIDs)
		report.Patterns[key] = &pattern
	}
	return report
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
