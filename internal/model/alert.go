package model

import "time"

// Condition compares a sampled metric value against a threshold.
// Comparison for eq is exact float equality.
type Condition string

const (
	ConditionGreaterThan Condition = "gt"
	ConditionLessThan    Condition = "lt"
	ConditionEquals      Condition = "eq"
)

// Valid reports whether c is a recognized condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals:
		return true
	}
	return false
}

// Match applies the condition to a value and threshold.
func (c Condition) Match(value, threshold float64) bool {
	switch c {
	case ConditionGreaterThan:
		return value > threshold
	case ConditionLessThan:
		return value < threshold
	case ConditionEquals:
		return value == threshold
	}
	return false
}

// Severity ranks an alert's operational impact.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a recognized severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Channel is an independent notification delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSlack    Channel = "slack"
	ChannelDatabase Channel = "database"
)

// Valid reports whether c is a recognized channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSlack, ChannelDatabase:
		return true
	}
	return false
}

// AlertConfig is a durable alert definition. Configs are disabled rather
// than deleted, so ids stay stable for operators and dashboards.
type AlertConfig struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Metric      string    `json:"metric"`
	Field       string    `json:"field"`
	Condition   Condition `json:"condition"`
	Threshold   float64   `json:"threshold"`
	DurationSec int       `json:"duration_s"`
	CooldownSec int       `json:"cooldown_s"`
	Enabled     bool      `json:"enabled"`
	Severity    Severity  `json:"severity"`
	Channels    []Channel `json:"channels"`
}

// Duration returns the sustain time the condition must hold before firing.
func (c AlertConfig) Duration() time.Duration {
	return time.Duration(c.DurationSec) * time.Second
}

// Cooldown returns the suppression time after a trigger.
func (c AlertConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec) * time.Second
}

// AlertEvent is a triggered alert handed to the notification channels.
// The database channel persists it verbatim for incident review.
type AlertEvent struct {
	ConfigID      string    `json:"config_id"`
	Name          string    `json:"name"`
	Metric        string    `json:"metric"`
	Field         string    `json:"field"`
	Severity      Severity  `json:"severity"`
	Condition     Condition `json:"condition"`
	Threshold     float64   `json:"threshold"`
	Value         float64   `json:"value"`
	Message       string    `json:"message"`
	FirstDetected time.Time `json:"first_detected"`
	TriggeredAt   time.Time `json:"triggered_at"`
	Channels      []Channel `json:"channels"`
}
