package alerting

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// Notifier delivers one alert over a single channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, ev model.AlertEvent) error
}

// DefaultDispatchQueueSize bounds the number of triggered alerts waiting
// for delivery.
const DefaultDispatchQueueSize = 64

// Pool fans triggered alerts out to notification channels from a bounded
// worker pool. The evaluator hands events over without blocking: a slow
// channel send can never starve the evaluation loop.
type Pool struct {
	notifiers   map[model.Channel]Notifier
	queue       chan model.AlertEvent
	sendTimeout time.Duration
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// PoolConfig holds tunable parameters for the dispatch pool.
type PoolConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// NewPool creates and starts a dispatch pool over the given notifiers.
func NewPool(notifiers map[model.Channel]Notifier, conf ...PoolConfig) *Pool {
	workers := 2
	queueSize := DefaultDispatchQueueSize
	sendTimeout := 30 * time.Second
	if len(conf) > 0 {
		if conf[0].Workers > 0 {
			workers = conf[0].Workers
		}
		if conf[0].QueueSize > 0 {
			queueSize = conf[0].QueueSize
		}
		if conf[0].SendTimeout > 0 {
			sendTimeout = conf[0].SendTimeout
		}
	}

	p := &Pool{
		notifiers:   notifiers,
		queue:       make(chan model.AlertEvent, queueSize),
		sendTimeout: sendTimeout,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Dispatch enqueues an event for delivery. When the queue is full the
// event is dropped and logged rather than blocking the caller.
func (p *Pool) Dispatch(ev model.AlertEvent) {
	select {
	case p.queue <- ev:
	default:
		log.Printf("alerting: dispatch queue full, dropped alert %s", ev.ConfigID)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for ev := range p.queue {
		p.deliver(ev)
	}
}

// deliver sends one event to each of its channels independently. A
// failure or panic in one channel is logged and the siblings still run.
func (p *Pool) deliver(ev model.AlertEvent) {
	for _, ch := range ev.Channels {
		n, ok := p.notifiers[ch]
		if !ok {
			log.Printf("alerting: no notifier wired for channel %q, skipping", ch)
			continue
		}
		p.send(n, ev)
	}
}

func (p *Pool) send(n Notifier, ev model.AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alerting: notifier %s panicked: %v", n.Name(), r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()

	if err := n.Send(ctx, ev); err != nil {
		log.Printf("alerting: notifier %s failed for alert %s: %v", n.Name(), ev.ConfigID, err)
	}
}

// Stop drains the queue and waits for in-flight deliveries to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}
