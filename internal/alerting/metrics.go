package alerting

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// MetricSource supplies the current numeric value for one named field.
// Sources form a closed set registered at startup; alert configs resolve
// against the registry rather than by dynamic lookup.
type MetricSource interface {
	Name() string
	Value(field string) (float64, error)
}

// Registry maps metric names to their registered sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]MetricSource
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]MetricSource)}
}

// Register adds a source under its name. Registering the same name twice
// is a wiring mistake and returns an error.
func (r *Registry) Register(src MetricSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[src.Name()]; exists {
		return fmt.Errorf("alerting: metric source %q already registered", src.Name())
	}
	r.sources[src.Name()] = src
	return nil
}

// Value resolves a (metric, field) pair to its current value.
func (r *Registry) Value(metric, field string) (float64, error) {
	r.mu.RLock()
	src, ok := r.sources[metric]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("alerting: unknown metric %q", metric)
	}
	return src.Value(field)
}

// LogStatsSource reports metrics derived from the correlation buffer.
type LogStatsSource struct {
	store interface {
		Stats() model.BufferStats
		Search(q model.SearchQuery) []model.LogEntry
	}
	now func() time.Time
}

// NewLogStatsSource creates the "logs" metric source over the correlation
// store.
func NewLogStatsSource(store interface {
	Stats() model.BufferStats
	Search(q model.SearchQuery) []model.LogEntry
}) *LogStatsSource {
	return &LogStatsSource{store: store, now: time.Now}
}

func (s *LogStatsSource) Name() string { return "logs" }

// Value supports fields: entry_count, group_count, and error_rate
// (error-level entries per minute over the trailing five minutes).
func (s *LogStatsSource) Value(field string) (float64, error) {
	switch field {
	case "entry_count":
		return float64(s.store.Stats().Entries), nil
	case "group_count":
		return float64(s.store.Stats().Groups), nil
	case "error_rate":
		const window = 5 * time.Minute
		now := s.now()
		errors := s.store.Search(model.SearchQuery{
			Level: model.LevelError,
			Start: now.Add(-window),
			End:   now,
		})
		return float64(len(errors)) / window.Minutes(), nil
	}
	return 0, fmt.Errorf("alerting: logs source has no field %q", field)
}

// RuntimeSource reports Go runtime metrics for the host process.
type RuntimeSource struct{}

func (RuntimeSource) Name() string { return "runtime" }

// Value supports fields: heap_mb and goroutines.
func (RuntimeSource) Value(field string) (float64, error) {
	switch field {
	case "heap_mb":
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc) / (1 << 20), nil
	case "goroutines":
		return float64(runtime.NumGoroutine()), nil
	}
	return 0, fmt.Errorf("alerting: runtime source has no field %q", field)
}
