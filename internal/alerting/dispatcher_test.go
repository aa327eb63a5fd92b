package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// fakeNotifier records sends and can fail or panic on demand.
type fakeNotifier struct {
	name   string
	err    error
	panics bool
	mu     sync.Mutex
	events []model.AlertEvent
}

func (n *fakeNotifier) Name() string { return n.name }

func (n *fakeNotifier) Send(_ context.Context, ev model.AlertEvent) error {
	if n.panics {
		panic("notifier exploded")
	}
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func testEvent(channels ...model.Channel) model.AlertEvent {
	return model.AlertEvent{
		ConfigID: "test-alert",
		Name:     "Test Alert",
		Severity: model.SeverityError,
		Message:  "Test Alert: logs.error_rate = 15.00 (gt 10.00, sustained 120s)",
		Channels: channels,
	}
}

func TestDeliverFansOutToAllChannels(t *testing.T) {
	email := &fakeNotifier{name: "email"}
	slack := &fakeNotifier{name: "slack"}
	db := &fakeNotifier{name: "database"}

	p := NewPool(map[model.Channel]Notifier{
		model.ChannelEmail:    email,
		model.ChannelSlack:    slack,
		model.ChannelDatabase: db,
	})

	p.Dispatch(testEvent(model.ChannelEmail, model.ChannelSlack, model.ChannelDatabase))
	p.Stop()

	for _, n := range []*fakeNotifier{email, slack, db} {
		if n.count() != 1 {
			t.Errorf("notifier %s received %d events, want 1", n.name, n.count())
		}
	}
}

func TestFailingChannelDoesNotBlockSiblings(t *testing.T) {
	email := &fakeNotifier{name: "email", err: errors.New("smtp refused")}
	db := &fakeNotifier{name: "database"}

	p := NewPool(map[model.Channel]Notifier{
		model.ChannelEmail:    email,
		model.ChannelDatabase: db,
	})

	p.Dispatch(testEvent(model.ChannelEmail, model.ChannelDatabase))
	p.Stop()

	if db.count() != 1 {
		t.Errorf("database notifier received %d events, want 1 despite email failure", db.count())
	}
}

func TestPanickingChannelIsolated(t *testing.T) {
	slack := &fakeNotifier{name: "slack", panics: true}
	db := &fakeNotifier{name: "database"}

	p := NewPool(map[model.Channel]Notifier{
		model.ChannelSlack:    slack,
		model.ChannelDatabase: db,
	})

	p.Dispatch(testEvent(model.ChannelSlack, model.ChannelDatabase))
	p.Stop()

	if db.count() != 1 {
		t.Errorf("database notifier received %d events, want 1 despite slack panic", db.count())
	}
}

func TestUnwiredChannelSkipped(t *testing.T) {
	db := &fakeNotifier{name: "database"}
	p := NewPool(map[model.Channel]Notifier{
		model.ChannelDatabase: db,
	})

	// Email has no notifier wired; the event still reaches the database.
	p.Dispatch(testEvent(model.ChannelEmail, model.ChannelDatabase))
	p.Stop()

	if db.count() != 1 {
		t.Errorf("database notifier received %d events, want 1", db.count())
	}
}

func TestDispatchDropsWhenQueueFull(t *testing.T) {
	// No workers consume until Stop, so the queue fills immediately.
	blocked := make(chan struct{})
	slow := &fakeNotifier{name: "database"}
	p := NewPool(map[model.Channel]Notifier{
		model.ChannelDatabase: &blockingNotifier{inner: slow, release: blocked},
	}, PoolConfig{Workers: 1, QueueSize: 1, SendTimeout: time.Second})

	// First event occupies the worker, second fills the queue, third drops.
	for i := 0; i < 3; i++ {
		p.Dispatch(testEvent(model.ChannelDatabase))
	}
	close(blocked)
	p.Stop()

	if got := slow.count(); got > 2 {
		t.Errorf("delivered %d events, want at most 2 (overflow must drop, not block)", got)
	}
}

func TestStopDrainsQueue(t *testing.T) {
	db := &fakeNotifier{name: "database"}
	p := NewPool(map[model.Channel]Notifier{model.ChannelDatabase: db},
		PoolConfig{Workers: 1, QueueSize: 16})

	for i := 0; i < 5; i++ {
		p.Dispatch(testEvent(model.ChannelDatabase))
	}
	p.Stop()

	if db.count() != 5 {
		t.Errorf("delivered %d events after Stop, want 5 (queued events must drain)", db.count())
	}
	p.Stop() // idempotent
}

// blockingNotifier holds each send until release is closed.
type blockingNotifier struct {
	inner   Notifier
	release chan struct{}
}

func (n *blockingNotifier) Name() string { return n.inner.Name() }

func (n *blockingNotifier) Send(ctx context.Context, ev model.AlertEvent) error {
	<-n.release
	return n.inner.Send(ctx, ev)
}
