package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, timeout time.Duration) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

var severityEmoji = map[model.Severity]string{
	model.SeverityInfo:     ":information_source:",
	model.SeverityWarning:  ":warning:",
	model.SeverityError:    ":x:",
	model.SeverityCritical: ":rotating_light:",
}

// Send posts the alert as a webhook payload. Non-2xx responses are
// reported as errors so the dispatcher can log them.
func (n *SlackNotifier) Send(ctx context.Context, ev model.AlertEvent) error {
	if n.webhookURL == "" {
		return fmt.Errorf("notify: no slack webhook configured")
	}

	payload := map[string]string{
		"text": fmt.Sprintf("%s *%s*\n%s", severityEmoji[ev.Severity], ev.Name, ev.Message),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
