package correlation

import (
	"log"
	"sync"
	"time"
)

// Janitor periodically evicts expired correlation groups from a store.
type Janitor struct {
	store    *Store
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewJanitor starts a background sweeper. Returns nil when interval <= 0
// (disabled).
func NewJanitor(store *Store, interval time.Duration) *Janitor {
	if interval <= 0 {
		return nil
	}

	j := &Janitor{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}

	j.wg.Add(1)
	go j.tickLoop()

	return j
}

func (j *Janitor) tickLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := j.store.Sweep(); evicted > 0 {
				log.Printf("correlation: janitor evicted %d expired groups", evicted)
			}
		case <-j.done:
			return
		}
	}
}

// Stop signals the janitor to stop and waits for it to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
