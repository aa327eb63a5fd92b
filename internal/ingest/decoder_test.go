package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

func wireEntry(raw string) Entry {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		panic(err)
	}
	return e
}

func TestConvertLevelAliases(t *testing.T) {
	cases := []struct {
		wire string
		want model.Level
	}{
		{"info", model.LevelInfo},
		{"INFO", model.LevelInfo},
		{"warning", model.LevelWarn},
		{"WARN", model.LevelWarn},
		{"err", model.LevelError},
		{"fatal", model.LevelError},
		{"critical", model.LevelError},
		{"trace", model.LevelDebug},
	}

	now := time.Now()
	for _, tc := range cases {
		t.Run(tc.wire, func(t *testing.T) {
			e := Entry{Level: tc.wire, Source: "backend"}
			out, err := e.Convert("c1", now)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if out.Level != tc.want {
				t.Errorf("Level = %q, want %q", out.Level, tc.want)
			}
		})
	}
}

func TestConvertRejectsUnknownLevelAndSource(t *testing.T) {
	now := time.Now()

	if _, err := (Entry{Level: "verbose", Source: "backend"}).Convert("c1", now); err == nil {
		t.Error("Convert accepted unknown level")
	}
	if _, err := (Entry{Level: "info", Source: "cache"}).Convert("c1", now); err == nil {
		t.Error("Convert accepted unknown source")
	}
}

func TestConvertSourceCaseInsensitive(t *testing.T) {
	out, err := (Entry{Level: "info", Source: " Frontend "}).Convert("c1", time.Now())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Source != model.SourceFrontend {
		t.Errorf("Source = %q, want frontend", out.Source)
	}
}

func TestConvertCorrelationFallbackChain(t *testing.T) {
	now := time.Now()

	e := wireEntry(`{"level":"info","source":"backend","correlationId":"own-id"}`)
	out, err := e.Convert("header-id", now)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.CorrelationID != "own-id" {
		t.Errorf("CorrelationID = %q, want the entry's own id", out.CorrelationID)
	}

	e = wireEntry(`{"level":"info","source":"backend"}`)
	out, err = e.Convert("header-id", now)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.CorrelationID != "header-id" {
		t.Errorf("CorrelationID = %q, want the out-of-band id", out.CorrelationID)
	}

	out, err = e.Convert("", now)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.CorrelationID != FallbackCorrelationID {
		t.Errorf("CorrelationID = %q, want %q", out.CorrelationID, FallbackCorrelationID)
	}
}

func TestConvertTimestampFormats(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2026-08-29T09:30:00Z"`, time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)},
		{"rfc3339 nano", `"2026-08-29T09:30:00.123456789Z"`, time.Date(2026, 8, 29, 9, 30, 0, 123456789, time.UTC)},
		{"space separated", `"2026-08-29 09:30:00"`, time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)},
		{"no zone", `"2026-08-29T09:30:00"`, time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)},
		{"epoch seconds", `1787088600`, time.Unix(1787088600, 0)},
		{"epoch millis", `1787088600123`, time.UnixMilli(1787088600123)},
		{"missing defaults to now", ``, now},
		{"null defaults to now", `null`, now},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Entry{Level: "info", Source: "backend", Timestamp: json.RawMessage(tc.raw)}
			out, err := e.Convert("c1", now)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !out.Timestamp.Equal(tc.want) {
				t.Errorf("Timestamp = %v, want %v", out.Timestamp, tc.want)
			}
		})
	}
}

func TestConvertRejectsGarbageTimestamp(t *testing.T) {
	e := Entry{Level: "info", Source: "backend", Timestamp: json.RawMessage(`"yesterday"`)}
	if _, err := e.Convert("c1", time.Now()); err == nil {
		t.Error("Convert accepted unparseable timestamp")
	}
}

func TestConvertKeepsDomainFields(t *testing.T) {
	e := wireEntry(`{
		"level": "ERROR",
		"source": "database",
		"correlationId": "wf-9",
		"message": "slow join",
		"sqlQuery": "SELECT * FROM orders",
		"queryDurationMs": 340,
		"context": {"table": "orders"}
	}`)

	out, err := e.Convert("", time.Now())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Message != "slow join" {
		t.Errorf("Message = %q", out.Message)
	}
	if out.SQLQuery != "SELECT * FROM orders" {
		t.Errorf("SQLQuery = %q", out.SQLQuery)
	}
	if out.QueryDurationMS == nil || *out.QueryDurationMS != 340 {
		t.Errorf("QueryDurationMS = %v, want 340", out.QueryDurationMS)
	}
	if out.Context["table"] != "orders" {
		t.Errorf("Context = %v", out.Context)
	}
}

func TestDecodeLine(t *testing.T) {
	now := time.Now()

	entry, err := DecodeLine([]byte(`{"level":"warn","source":"middleware","correlationId":"tcp-1","message":"retry"}`), now)
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if entry.Level != model.LevelWarn || entry.CorrelationID != "tcp-1" {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := DecodeLine([]byte(`not json`), now); err == nil {
		t.Error("DecodeLine accepted malformed line")
	}

	// TCP lines have no out-of-band id; empty falls to the shared default.
	entry, err = DecodeLine([]byte(`{"level":"info","source":"backend","message":"anon"}`), now)
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if entry.CorrelationID != FallbackCorrelationID {
		t.Errorf("CorrelationID = %q, want %q", entry.CorrelationID, FallbackCorrelationID)
	}
}
