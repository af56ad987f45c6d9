// Package prefs stores the operator's sync preferences in a YAML file.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/melih/lighthouse-console/internal/core/ports"
)

const (
	// MinRefreshSeconds is the smallest accepted polling interval.
	MinRefreshSeconds     = 5
	DefaultRefreshSeconds = 30
)

// Values are the persisted preferences.
type Values struct {
	AutoUpdate bool `yaml:"auto_update" json:"autoUpdate"`
	// RefreshInterval is the polling interval in seconds.
	RefreshInterval int `yaml:"refresh_interval" json:"refreshInterval"`
}

// Defaults returns auto-update on with a 30s interval.
func Defaults() Values {
	return Values{AutoUpdate: true, RefreshInterval: DefaultRefreshSeconds}
}

func (v Values) normalize() Values {
	switch {
	case v.RefreshInterval <= 0:
		v.RefreshInterval = DefaultRefreshSeconds
	case v.RefreshInterval < MinRefreshSeconds:
		v.RefreshInterval = MinRefreshSeconds
	}
	return v
}

// Store implements ports.Preferences. An empty path keeps preferences in
// memory only.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values Values
}

// Open loads path, falling back to defaults when it does not exist yet.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger, values: Defaults()}
	if path == "" {
		return s, nil
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoUpdate reports whether live updates are enabled.
func (s *Store) AutoUpdate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.AutoUpdate
}

// RefreshInterval is the polling interval.
func (s *Store) RefreshInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.values.RefreshInterval) * time.Second
}

// Values returns the current preferences.
func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Update replaces the preferences and persists them.
func (s *Store) Update(v Values) (Values, error) {
	v = v.normalize()
	if s.path != "" {
		if err := s.write(v); err != nil {
			return Values{}, err
		}
	}
	s.mu.Lock()
	s.values = v
	s.mu.Unlock()
	return v, nil
}

// Reload re-reads the file and reports whether the values changed.
func (s *Store) Reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read preferences: %w", err)
	}

	v := Defaults()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("failed to parse preferences: %w", err)
	}
	v = v.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := v != s.values
	s.values = v
	return changed, nil
}

// write replaces the file atomically so watchers never see a partial
// document.
func (s *Store) write(v Values) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// Watch reloads the file whenever it changes on disk and calls onChange
// with the new values when they differ. It blocks until ctx is done.
// The directory is watched rather than the file so editors that replace
// the file by rename are seen.
func (s *Store) Watch(ctx context.Context, onChange func(Values)) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create preferences watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	name := filepath.Clean(s.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			changed, err := s.Reload()
			if err != nil {
				s.logger.Warn("ignoring unreadable preferences", "path", s.path, "error", err)
				continue
			}
			if changed && onChange != nil {
				onChange(s.Values())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("preferences watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

var _ ports.Preferences = (*Store)(nil)
