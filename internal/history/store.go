// Package history persists dispatched alerts in DuckDB so operators can
// query incident history after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tracewatch/tracewatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	config_id      VARCHAR NOT NULL,
	name           VARCHAR NOT NULL,
	metric         VARCHAR NOT NULL,
	field          VARCHAR NOT NULL,
	severity       VARCHAR NOT NULL,
	condition      VARCHAR NOT NULL,
	threshold      DOUBLE NOT NULL,
	value          DOUBLE NOT NULL,
	message        VARCHAR NOT NULL,
	first_detected TIMESTAMP NOT NULL,
	triggered_at   TIMESTAMP NOT NULL,
	channels       VARCHAR NOT NULL
)`

// Store manages the DuckDB database holding alert history.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the alert history database. An empty path
// uses an in-memory database.
func NewStore(path string) (*Store, error) {
	dsn := ""
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertAlert persists one dispatched alert.
func (s *Store) InsertAlert(ev model.AlertEvent) error {
	channels := make([]string, len(ev.Channels))
	for i, ch := range ev.Channels {
		channels[i] = string(ch)
	}

	_, err := s.db.Exec(
		`INSERT INTO alert_events
		 (config_id, name, metric, field, severity, condition, threshold, value, message, first_detected, triggered_at, channels)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ConfigID, ev.Name, ev.Metric, ev.Field, string(ev.Severity), string(ev.Condition),
		ev.Threshold, ev.Value, ev.Message, ev.FirstDetected, ev.TriggeredAt,
		strings.Join(channels, ","),
	)
	if err != nil {
		return fmt.Errorf("history: insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the most recently triggered alerts, newest first.
func (s *Store) RecentAlerts(limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT config_id, name, metric, field, severity, condition, threshold, value, message, first_detected, triggered_at, channels
		 FROM alert_events ORDER BY triggered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var ev model.AlertEvent
		var severity, condition, channels string
		if err := rows.Scan(
			&ev.ConfigID, &ev.Name, &ev.Metric, &ev.Field, &severity, &condition,
			&ev.Threshold, &ev.Value, &ev.Message, &ev.FirstDetected, &ev.TriggeredAt, &channels,
		); err != nil {
			return nil, fmt.Errorf("history: scan alert: %w", err)
		}
		ev.Severity = model.Severity(severity)
		ev.Condition = model.Condition(condition)
		if channels != "" {
			for _, ch := range strings.Split(channels, ",") {
				ev.Channels = append(ev.Channels, model.Channel(ch))
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate alerts: %w", err)
	}
	return events, nil
}
