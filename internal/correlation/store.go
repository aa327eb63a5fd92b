package correlation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

// ErrInvalidEntry rejects an entry with a missing correlation id or an
// unrecognized level or source.
var ErrInvalidEntry = errors.New("correlation: invalid entry")

// Config holds tunable parameters for the store.
type Config struct {
	MaxEntriesPerGroup int
	GroupTTL           time.Duration
}

// group is one correlation id's buffered entries. Each group carries its
// own lock so concurrent appends to the same id serialize against each
// other without blocking writers on other ids. dead is set under mu when
// the group is removed from the index; an appender that looked the group
// up before removal sees the flag and re-fetches.
type group struct {
	mu       sync.Mutex
	entries  []model.LogEntry
	deadline time.Time
	dead     bool
}

// Store is a keyed, size- and time-bounded buffer of log entries grouped
// by correlation id. It supports any number of concurrent appenders,
// including multiple appenders on the same id.
type Store struct {
	mu         sync.RWMutex
	groups     map[string]*group
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewStore creates a correlation store. Zero config fields fall back to
// the shared defaults.
func NewStore(conf ...Config) *Store {
	maxEntries := model.DefaultMaxEntriesPerGroup
	ttl := model.DefaultGroupTTL
	if len(conf) > 0 {
		if conf[0].MaxEntriesPerGroup > 0 {
			maxEntries = conf[0].MaxEntriesPerGroup
		}
		if conf[0].GroupTTL > 0 {
			ttl = conf[0].GroupTTL
		}
	}
	return &Store{
		groups:     make(map[string]*group),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Append validates and buffers one entry under its correlation id.
// The read-modify-write of the group is atomic per key: the group lock is
// held across append, trim, and TTL refresh, so concurrent appenders on
// the same id never lose entries.
func (s *Store) Append(e model.LogEntry) error {
	if strings.TrimSpace(e.CorrelationID) == "" {
		return fmt.Errorf("%w: empty correlation id", ErrInvalidEntry)
	}
	if !e.Level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidEntry, e.Level)
	}
	if !e.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidEntry, e.Source)
	}

	for {
		g := s.groupFor(e.CorrelationID)

		g.mu.Lock()
		if g.dead {
			// A cleanup removed the group between lookup and lock.
			// Writing here would land in a detached group; re-fetch.
			g.mu.Unlock()
			continue
		}
		g.entries = append(g.entries, e.Clone())
		if over := len(g.entries) - s.maxEntries; over > 0 {
			// FIFO trim: drop the oldest buffered entries.
			g.entries = append(g.entries[:0], g.entries[over:]...)
		}
		g.deadline = s.now().Add(s.ttl)
		g.mu.Unlock()

		return nil
	}
}

// groupFor returns the group for an id, creating it on first append.
func (s *Store) groupFor(id string) *group {
	s.mu.RLock()
	g, ok := s.groups[id]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok = s.groups[id]; ok {
		return g
	}
	g = &group{deadline: s.now().Add(s.ttl)}
	s.groups[id] = g
	return g
}

// Entries returns a copy of the group for one correlation id, sorted
// ascending by timestamp. Insertion order is not timestamp order under
// concurrent writers, so sorting happens here at read time.
func (s *Store) Entries(correlationID string) []model.LogEntry {
	s.mu.RLock()
	g, ok := s.groups[correlationID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	g.mu.Lock()
	out := make([]model.LogEntry, len(g.entries))
	copy(out, g.entries)
	g.mu.Unlock()

	sortByTimestamp(out)
	return out
}

// CorrelationIDs returns a snapshot of all currently indexed ids.
func (s *Store) CorrelationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	return ids
}

// Search scans every indexed group, filtering entries by level, source,
// time range, and substring match against the message or serialized
// context. The scan is O(total buffered entries), which is acceptable for
// a bounded, TTL-evicted buffer. It short-circuits once Limit entries
// are collected.
func (s *Store) Search(q model.SearchQuery) []model.LogEntry {
	var results []model.LogEntry
	for _, id := range s.CorrelationIDs() {
		s.mu.RLock()
		g, ok := s.groups[id]
		s.mu.RUnlock()
		if !ok {
			continue // evicted between snapshot and lookup
		}

		g.mu.Lock()
		snapshot := make([]model.LogEntry, len(g.entries))
		copy(snapshot, g.entries)
		g.mu.Unlock()

		for _, e := range snapshot {
			if !matches(e, q) {
				continue
			}
			results = append(results, e)
			if q.Limit > 0 && len(results) >= q.Limit {
				return results
			}
		}
	}
	return results
}

func matches(e model.LogEntry, q model.SearchQuery) bool {
	if q.Level != "" && e.Level != q.Level {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if !q.Start.IsZero() && e.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.Timestamp.After(q.End) {
		return false
	}
	if q.Text != "" {
		text := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(e.Message), text) &&
			!strings.Contains(strings.ToLower(serializeContext(e.Context)), text) {
			return false
		}
	}
	return true
}

func serializeContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	var b strings.Builder
	for k, v := range ctx {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(' ')
	}
	return b.String()
}

// Cleanup drops every buffered entry older than the cutoff and deletes
// groups that become empty. It returns the number of entries removed and
// is idempotent: a second call with the same cutoff removes zero.
func (s *Store) Cleanup(olderThan time.Time) int {
	removed := 0
	for _, id := range s.CorrelationIDs() {
		s.mu.RLock()
		g, ok := s.groups[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		g.mu.Lock()
		kept := g.entries[:0]
		for _, e := range g.entries {
			if e.Timestamp.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		g.entries = kept
		empty := len(g.entries) == 0
		g.mu.Unlock()

		if empty {
			s.dropIfEmpty(id)
		}
	}
	return removed
}

// Sweep evicts groups whose TTL deadline has passed with no new writes.
// It returns the number of groups removed.
func (s *Store) Sweep() int {
	now := s.now()
	evicted := 0
	for _, id := range s.CorrelationIDs() {
		s.mu.RLock()
		g, ok := s.groups[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		g.mu.Lock()
		expired := now.After(g.deadline)
		if expired {
			g.entries = nil
		}
		g.mu.Unlock()

		if expired {
			s.dropIfEmpty(id)
			evicted++
		}
	}
	return evicted
}

// dropIfEmpty removes an id from the index only when its group is still
// empty, marking the group dead under its own lock so an appender that
// already looked it up retries instead of writing into a detached group.
func (s *Store) dropIfEmpty(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return
	}
	g.mu.Lock()
	if len(g.entries) == 0 {
		g.dead = true
		delete(s.groups, id)
	}
	g.mu.Unlock()
}

// Stats reports the current buffer size.
func (s *Store) Stats() model.BufferStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.BufferStats{Groups: len(s.groups)}
	for _, g := range s.groups {
		g.mu.Lock()
		stats.Entries += len(g.entries)
		g.mu.Unlock()
	}
	return stats
}

func sortByTimestamp(entries []model.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
