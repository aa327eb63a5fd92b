package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/tracewatch/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Tracewatch - Log Correlation & Alerting Service\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultAlertConfigPath := filepath.Join(home, ".local", "share", "tracewatch", "alerts.json")
	defaultDBPath := filepath.Join(home, ".local", "share", "tracewatch", "history.duckdb")

	v := viper.New()
	v.SetEnvPrefix("TRACEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("cache-timeout", defaultGroupTTL)
	v.SetDefault("max-entries-per-correlation", defaultMaxEntries)
	v.SetDefault("janitor-interval", defaultJanitorInterval)
	v.SetDefault("monitoring-interval", defaultMonitoringInterval)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("ingest-rate", defaultIngestRate)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("alert-config-path", defaultAlertConfigPath)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("dispatch-workers", defaultDispatchWorkers)
	v.SetDefault("dispatch-queue-size", defaultDispatchQueue)
	v.SetDefault("send-timeout", defaultSendTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "tracewatch", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return cfg, fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.MaxEntries <= 0 {
		return cfg, fmt.Errorf("invalid max-entries-per-correlation: %d", cfg.MaxEntries)
	}
	if cfg.MonitoringInterval <= 0 {
		return cfg, fmt.Errorf("invalid monitoring-interval: %s", cfg.MonitoringInterval)
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.AlertConfigPath, &cfg.DBPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.TCPPort))
	}

	return cfg, nil
}
