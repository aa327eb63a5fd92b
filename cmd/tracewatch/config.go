package main

import (
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

const (
	defaultGroupTTL           = model.DefaultGroupTTL
	defaultMaxEntries         = model.DefaultMaxEntriesPerGroup
	defaultMonitoringInterval = model.DefaultMonitoringInterval
	defaultJanitorInterval    = 1 * time.Minute
	defaultBindHost           = "127.0.0.1"
	defaultAPIPort            = 8600
	defaultTCPPort            = 4040
	defaultIngestRate         = 100.0 // requests per second
	defaultDispatchWorkers    = 2
	defaultDispatchQueue      = 64
	defaultSendTimeout        = 30 * time.Second
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	GroupTTL           time.Duration `mapstructure:"cache-timeout"`
	MaxEntries         int           `mapstructure:"max-entries-per-correlation"`
	JanitorInterval    time.Duration `mapstructure:"janitor-interval"`
	MonitoringInterval time.Duration `mapstructure:"monitoring-interval"`

	APIPort     int     `mapstructure:"api-port"`
	APIAddr     string  `mapstructure:"api-addr"`
	IngestRate  float64 `mapstructure:"ingest-rate"`
	IngestBurst int     `mapstructure:"ingest-burst"`

	TCPEnabled bool   `mapstructure:"tcp-enabled"`
	TCPPort    int    `mapstructure:"tcp-port"`
	TCPAddr    string `mapstructure:"tcp-addr"`

	AlertConfigPath string `mapstructure:"alert-config-path"`
	DBPath          string `mapstructure:"db-path"`

	DispatchWorkers   int           `mapstructure:"dispatch-workers"`
	DispatchQueueSize int           `mapstructure:"dispatch-queue-size"`
	SendTimeout       time.Duration `mapstructure:"send-timeout"`

	SMTPAddr        string   `mapstructure:"smtp-addr"`
	SMTPUsername    string   `mapstructure:"smtp-username"`
	SMTPPassword    string   `mapstructure:"smtp-password"`
	EmailFrom       string   `mapstructure:"email-from"`
	EmailRecipients []string `mapstructure:"email-recipients"`
	SlackWebhookURL string   `mapstructure:"slack-webhook-url"`

	ConfigPath string `mapstructure:"-"` // not from config file
}
