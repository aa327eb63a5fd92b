package alerting

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// Dispatcher receives triggered alerts. Dispatch must not block the
// evaluation loop.
type Dispatcher interface {
	Dispatch(ev model.AlertEvent)
}

// ConfigLister supplies the current alert definitions each tick.
type ConfigLister interface {
	List() []model.AlertConfig
}

// detectionState tracks one config's hysteresis progress. It exists only
// while the condition evaluates true and is discarded on the first false
// tick.
type detectionState struct {
	firstDetected time.Time
	lastChecked   time.Time
	currentValue  float64
	triggered     bool
}

// Evaluator runs the periodic alert check loop. Per config it applies a
// sustained-duration (hysteresis) threshold test and hands triggered
// alerts to the dispatcher.
//
// lastTriggered lives outside the detection state on purpose: the state
// is discarded whenever the condition goes false, and a flapping metric
// that crossed, dropped, and crossed again within the cooldown window
// must still be suppressed.
type Evaluator struct {
	configs    ConfigLister
	metrics    *Registry
	dispatcher Dispatcher
	interval   time.Duration

	mu            sync.Mutex
	states        map[string]*detectionState
	lastTriggered map[string]time.Time

	now      func() time.Time
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEvaluator creates an evaluator. It does not start the loop; call
// Start.
func NewEvaluator(configs ConfigLister, metrics *Registry, dispatcher Dispatcher, interval time.Duration) *Evaluator {
	if interval <= 0 {
		interval = model.DefaultMonitoringInterval
	}
	return &Evaluator{
		configs:       configs,
		metrics:       metrics,
		dispatcher:    dispatcher,
		interval:      interval,
		states:        make(map[string]*detectionState),
		lastTriggered: make(map[string]time.Time),
		now:           time.Now,
		done:          make(chan struct{}),
	}
}

// Start launches the background tick loop.
func (e *Evaluator) Start() {
	e.wg.Add(1)
	go e.tickLoop()
}

func (e *Evaluator) tickLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.RunTick()
		case <-e.done:
			return
		}
	}
}

// Stop signals the loop to exit and waits for it. The signal is observed
// within one tick interval.
func (e *Evaluator) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}

// RunTick evaluates every enabled config once. A failure while checking
// one config is caught and logged; the remaining configs still run.
func (e *Evaluator) RunTick() {
	for _, cfg := range e.configs.List() {
		if !cfg.Enabled {
			continue
		}
		e.safeEvaluate(cfg)
	}
}

func (e *Evaluator) safeEvaluate(cfg model.AlertConfig) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alerting: evaluation of %s panicked: %v", cfg.ID, r)
		}
	}()
	e.evaluate(cfg)
}

func (e *Evaluator) evaluate(cfg model.AlertConfig) {
	now := e.now()

	e.mu.Lock()
	st := e.states[cfg.ID]
	last, fired := e.lastTriggered[cfg.ID]
	e.mu.Unlock()

	// A triggered alert inside its cooldown window skips the whole tick.
	if st != nil && st.triggered && fired && now.Sub(last) < cfg.Cooldown() {
		return
	}

	value, err := e.metrics.Value(cfg.Metric, cfg.Field)
	if err != nil {
		log.Printf("alerting: metric fetch for %s failed: %v", cfg.ID, err)
		return
	}

	if !cfg.Condition.Match(value, cfg.Threshold) {
		// Condition cleared: discard the detection state. lastTriggered
		// is kept so cooldown survives the reset.
		e.mu.Lock()
		delete(e.states, cfg.ID)
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st = e.states[cfg.ID]
	if st == nil {
		st = &detectionState{firstDetected: now}
		e.states[cfg.ID] = st
	}
	st.lastChecked = now
	st.currentValue = value

	if st.triggered {
		// Already fired for this sustained episode; at most one trigger
		// until the condition clears.
		return
	}
	if now.Sub(st.firstDetected) < cfg.Duration() {
		return
	}
	if last, fired := e.lastTriggered[cfg.ID]; fired && now.Sub(last) < cfg.Cooldown() {
		log.Printf("alerting: %s re-sustained within cooldown, suppressed", cfg.ID)
		return
	}

	st.triggered = true
	e.lastTriggered[cfg.ID] = now

	e.dispatcher.Dispatch(model.AlertEvent{
		ConfigID:      cfg.ID,
		Name:          cfg.Name,
		Metric:        cfg.Metric,
		Field:         cfg.Field,
		Severity:      cfg.Severity,
		Condition:     cfg.Condition,
		Threshold:     cfg.Threshold,
		Value:         value,
		Message:       triggerMessage(cfg, value),
		FirstDetected: st.firstDetected,
		TriggeredAt:   now,
		Channels:      append([]model.Channel(nil), cfg.Channels...),
	})
}

func triggerMessage(cfg model.AlertConfig, value float64) string {
	return fmt.Sprintf("%s: %s.%s = %.2f (%s %.2f, sustained %ds)",
		cfg.Name, cfg.Metric, cfg.Field, value, cfg.Condition, cfg.Threshold, cfg.DurationSec)
}
