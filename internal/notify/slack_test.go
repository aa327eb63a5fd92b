package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSlackSend(t *testing.T) {
	var gotContentType string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotPayload); err != nil {
			t.Errorf("payload not valid JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, 5*time.Second)
	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	text := gotPayload["text"]
	if !strings.Contains(text, "High Error Rate") {
		t.Errorf("text missing alert name: %q", text)
	}
	if !strings.Contains(text, ":x:") {
		t.Errorf("text missing severity emoji for error: %q", text)
	}
}

func TestSlackNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, 5*time.Second)
	if err := n.Send(context.Background(), sampleEvent()); err == nil {
		t.Error("Send accepted a 403 response")
	}
}

func TestSlackEmptyWebhook(t *testing.T) {
	n := NewSlackNotifier("", 5*time.Second)
	if err := n.Send(context.Background(), sampleEvent()); err == nil {
		t.Error("Send accepted empty webhook URL")
	}
}

func TestSlackCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewSlackNotifier(srv.URL, 5*time.Second)
	if err := n.Send(ctx, sampleEvent()); err == nil {
		t.Error("Send ignored cancelled context")
	}
}
