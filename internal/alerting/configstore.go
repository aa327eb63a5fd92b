// Package alerting samples operational metrics on a schedule, applies a
// sustained-duration threshold test per alert config, and dispatches
// triggered alerts to notification channels with cooldown suppression.
package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/tracewatch/tracewatch/internal/model"
)

// ErrConfigNotFound is returned by Update for an unknown alert id.
var ErrConfigNotFound = errors.New("alerting: config not found")

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// ConfigStore is the durable, mutable list of alert definitions. The
// in-memory list is the source of truth between successful persists: a
// persistence failure is logged but does not roll back the mutation.
type ConfigStore struct {
	mu      sync.Mutex
	path    string
	configs []model.AlertConfig
}

// NewConfigStore creates a config store persisting to path.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// Load reads the persisted config list. When the file is absent the store
// seeds the hard-coded defaults and persists them.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("alerting: read configs: %w", err)
		}
		s.configs = DefaultConfigs()
		if perr := s.persistLocked(); perr != nil {
			log.Printf("alerting: could not persist seeded configs: %v", perr)
		}
		return nil
	}

	var configs []model.AlertConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("alerting: parse configs: %w", err)
	}
	s.configs = configs
	return nil
}

// List returns a copy of the current configs.
func (s *ConfigStore) List() []model.AlertConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AlertConfig, len(s.configs))
	copy(out, s.configs)
	return out
}

// ConfigPatch carries the fields of a partial update. Nil pointers leave
// the existing value untouched; a nil Channels slice is "no change".
type ConfigPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Condition   *model.Condition `json:"condition,omitempty"`
	Threshold   *float64         `json:"threshold,omitempty"`
	DurationSec *int             `json:"duration_s,omitempty"`
	CooldownSec *int             `json:"cooldown_s,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty"`
	Severity    *model.Severity  `json:"severity,omitempty"`
	Channels    []model.Channel  `json:"channels,omitempty"`
}

func (p ConfigPatch) validate() error {
	if p.Condition != nil && !p.Condition.Valid() {
		return fmt.Errorf("alerting: unknown condition %q", *p.Condition)
	}
	if p.Severity != nil && !p.Severity.Valid() {
		return fmt.Errorf("alerting: unknown severity %q", *p.Severity)
	}
	if p.DurationSec != nil && *p.DurationSec < 0 {
		return fmt.Errorf("alerting: negative duration_s")
	}
	if p.CooldownSec != nil && *p.CooldownSec < 0 {
		return fmt.Errorf("alerting: negative cooldown_s")
	}
	for _, ch := range p.Channels {
		if !ch.Valid() {
			return fmt.Errorf("alerting: unknown channel %q", ch)
		}
	}
	return nil
}

// Update overwrites only the provided fields of the config with the given
// id and persists the full list. The in-memory mutation is kept even when
// the persist fails; the failure is logged so operators can re-save.
func (s *ConfigStore) Update(id string, patch ConfigPatch) (model.AlertConfig, error) {
	if err := patch.validate(); err != nil {
		return model.AlertConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.configs {
		if s.configs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.AlertConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
	}

	cfg := &s.configs[idx]
	if patch.Name != nil {
		cfg.Name = *patch.Name
	}
	if patch.Description != nil {
		cfg.Description = *patch.Description
	}
	if patch.Condition != nil {
		cfg.Condition = *patch.Condition
	}
	if patch.Threshold != nil {
		cfg.Threshold = *patch.Threshold
	}
	if patch.DurationSec != nil {
		cfg.DurationSec = *patch.DurationSec
	}
	if patch.CooldownSec != nil {
		cfg.CooldownSec = *patch.CooldownSec
	}
	if patch.Enabled != nil {
		cfg.Enabled = *patch.Enabled
	}
	if patch.Severity != nil {
		cfg.Severity = *patch.Severity
	}
	if patch.Channels != nil {
		cfg.Channels = append([]model.Channel(nil), patch.Channels...)
	}

	if err := s.persistLocked(); err != nil {
		log.Printf("alerting: persist after update of %s failed: %v", id, err)
	}
	return *cfg, nil
}

// persistLocked writes the full list with a tmp+sync+rename sequence so a
// crash mid-write never leaves a torn config file.
func (s *ConfigStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), defaultDirMode); err != nil {
		return fmt.Errorf("alerting: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s.configs, "", "  ")
	if err != nil {
		return fmt.Errorf("alerting: marshal configs: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, defaultFileMode); err != nil {
		return fmt.Errorf("alerting: write config tmp: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_RDWR, defaultFileMode)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("alerting: open config tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("alerting: sync config tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("alerting: close config tmp: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("alerting: rename config file: %w", err)
	}
	return nil
}
