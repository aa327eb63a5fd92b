package model

import "time"

// Shared defaults used by the server binary and package constructors.
const (
	DefaultGroupTTL           = 30 * time.Minute
	DefaultMaxEntriesPerGroup = 1000
	DefaultMonitoringInterval = 60 * time.Second
)
