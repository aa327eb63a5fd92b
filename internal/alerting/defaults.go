package alerting

import "github.com/tracewatch/tracewatch/internal/model"

// DefaultConfigs returns the seed alert definitions used on first run,
// one per supported metric field.
func DefaultConfigs() []model.AlertConfig {
	return []model.AlertConfig{
		{
			ID:          "high-error-rate",
			Name:        "High Error Rate",
			Description: "Error-level log entries per minute exceed threshold",
			Metric:      "logs",
			Field:       "error_rate",
			Condition:   model.ConditionGreaterThan,
			Threshold:   10,
			DurationSec: 120,
			CooldownSec: 600,
			Enabled:     true,
			Severity:    model.SeverityError,
			Channels:    []model.Channel{model.ChannelEmail, model.ChannelDatabase},
		},
		{
			ID:          "log-buffer-saturation",
			Name:        "Log Buffer Saturation",
			Description: "Total buffered log entries exceed threshold",
			Metric:      "logs",
			Field:       "entry_count",
			Condition:   model.ConditionGreaterThan,
			Threshold:   500_000,
			DurationSec: 300,
			CooldownSec: 1800,
			Enabled:     true,
			Severity:    model.SeverityWarning,
			Channels:    []model.Channel{model.ChannelSlack},
		},
		{
			ID:          "high-heap-usage",
			Name:        "High Heap Usage",
			Description: "Process heap allocation exceeds threshold (MB)",
			Metric:      "runtime",
			Field:       "heap_mb",
			Condition:   model.ConditionGreaterThan,
			Threshold:   1024,
			DurationSec: 180,
			CooldownSec: 900,
			Enabled:     true,
			Severity:    model.SeverityWarning,
			Channels:    []model.Channel{model.ChannelSlack, model.ChannelDatabase},
		},
		{
			ID:          "goroutine-leak",
			Name:        "Goroutine Leak",
			Description: "Goroutine count exceeds threshold",
			Metric:      "runtime",
			Field:       "goroutines",
			Condition:   model.ConditionGreaterThan,
			Threshold:   5000,
			DurationSec: 300,
			CooldownSec: 1800,
			Enabled:     true,
			Severity:    model.SeverityCritical,
			Channels:    []model.Channel{model.ChannelEmail, model.ChannelSlack, model.ChannelDatabase},
		},
	}
}
