package notify

import (
	"context"
	"fmt"

	"github.com/tracewatch/tracewatch/internal/model"
)

// AlertWriter is the narrow persistence contract the database channel
// needs from the history store.
type AlertWriter interface {
	InsertAlert(ev model.AlertEvent) error
}

// DatabaseNotifier persists alerts as structured records so incident
// review can query them later.
type DatabaseNotifier struct {
	writer AlertWriter
}

// NewDatabaseNotifier creates the database channel over an alert writer.
func NewDatabaseNotifier(writer AlertWriter) *DatabaseNotifier {
	return &DatabaseNotifier{writer: writer}
}

func (n *DatabaseNotifier) Name() string { return "database" }

// Send persists the alert event.
func (n *DatabaseNotifier) Send(ctx context.Context, ev model.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.writer.InsertAlert(ev); err != nil {
		return fmt.Errorf("notify: persist alert: %w", err)
	}
	return nil
}
