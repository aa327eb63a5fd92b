package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tracewatch/tracewatch/internal/alerting"
	"github.com/tracewatch/tracewatch/internal/analyzer"
	"github.com/tracewatch/tracewatch/internal/correlation"
	"github.com/tracewatch/tracewatch/internal/history"
	"github.com/tracewatch/tracewatch/internal/httpserver"
	"github.com/tracewatch/tracewatch/internal/model"
	"github.com/tracewatch/tracewatch/internal/notify"
	"github.com/tracewatch/tracewatch/internal/tcpserver"
)

// runServer starts the correlation buffer, alert evaluator, and serving
// surfaces, then blocks until a shutdown signal.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	// Correlation buffer and TTL janitor.
	store := correlation.NewStore(correlation.Config{
		MaxEntriesPerGroup: cfg.MaxEntries,
		GroupTTL:           cfg.GroupTTL,
	})
	janitor := correlation.NewJanitor(store, cfg.JanitorInterval)
	if janitor != nil {
		defer janitor.Stop()
	}

	traces := analyzer.New(store)

	// Durable alert configs, seeded with defaults on first run.
	configs := alerting.NewConfigStore(cfg.AlertConfigPath)
	if err := configs.Load(); err != nil {
		return fmt.Errorf("failed to load alert configs: %w", err)
	}

	// Alert history database (the "database" notification channel).
	histStore, err := history.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open alert history: %w", err)
	}
	defer histStore.Close()

	notifiers := buildNotifiers(cfg, histStore)

	pool := alerting.NewPool(notifiers, alerting.PoolConfig{
		Workers:     cfg.DispatchWorkers,
		QueueSize:   cfg.DispatchQueueSize,
		SendTimeout: cfg.SendTimeout,
	})
	defer pool.Stop()

	// Metric sources form a closed set registered at startup.
	metrics := alerting.NewRegistry()
	if err := metrics.Register(alerting.NewLogStatsSource(store)); err != nil {
		return err
	}
	if err := metrics.Register(alerting.RuntimeSource{}); err != nil {
		return err
	}

	evaluator := alerting.NewEvaluator(configs, metrics, pool, cfg.MonitoringInterval)
	evaluator.Start()
	defer evaluator.Stop()

	// HTTP API (ingestion, query, alert surfaces).
	apiServer := httpserver.NewServer(httpserver.Config{
		Addr:        cfg.APIAddr,
		Entries:     store,
		Analyzer:    traces,
		Configs:     configs,
		History:     histStore,
		IngestRate:  cfg.IngestRate,
		IngestBurst: cfg.IngestBurst,
	})
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	// Optional TCP line ingest.
	var tcpSrv *tcpserver.Server
	if cfg.TCPEnabled {
		tcpSrv = tcpserver.NewServer(cfg.TCPAddr)
		if err := tcpSrv.Start(); err != nil {
			return fmt.Errorf("failed to start TCP ingest: %w", err)
		}
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()
		if tcpSrv != nil {
			_ = tcpSrv.Stop()
		}

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	if tcpSrv != nil {
		g.Go(func() error {
			for entry := range tcpSrv.Entries() {
				if err := store.Append(entry); err != nil {
					log.Printf("server: dropped invalid TCP entry: %v", err)
				}
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	signal.Stop(sigCh)

	return nil
}

// buildNotifiers wires the notification channels that have configuration.
// The database channel is always available; email and slack require
// recipient settings.
func buildNotifiers(cfg appConfig, hist *history.Store) map[model.Channel]alerting.Notifier {
	notifiers := map[model.Channel]alerting.Notifier{
		model.ChannelDatabase: notify.NewDatabaseNotifier(hist),
	}

	if cfg.SMTPAddr != "" && len(cfg.EmailRecipients) > 0 {
		notifiers[model.ChannelEmail] = notify.NewEmailNotifier(notify.EmailConfig{
			Addr:       cfg.SMTPAddr,
			From:       cfg.EmailFrom,
			Recipients: cfg.EmailRecipients,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
		})
	} else {
		log.Printf("server: email channel not configured, alerts on it will be skipped")
	}

	if cfg.SlackWebhookURL != "" {
		notifiers[model.ChannelSlack] = notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SendTimeout)
	} else {
		log.Printf("server: slack channel not configured, alerts on it will be skipped")
	}

	return notifiers
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "tracewatch")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "tracewatch.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, cyan.Bold(true).Render("    tracewatch")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Ingest"))
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Alerting"))
	lines = append(lines, fmt.Sprintf("    %s  Evaluator      %s", check, dim.Render("every "+cfg.MonitoringInterval.String())))
	lines = append(lines, fmt.Sprintf("    %s  Configs        %s", check, dim.Render(shortenPath(cfg.AlertConfigPath))))
	lines = append(lines, fmt.Sprintf("    %s  History        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	lines = append(lines, "")

	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
