// Package checkpoint persists batch progress so an interrupted or
// repeated run can skip identities it already collected.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// Checkpoint is the on-disk state of one batch run.
type Checkpoint struct {
	Fetched   map[string]time.Time `json:"fetched"` // username -> completion time
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Version   int                  `json:"version"`
}

// Manager loads and saves the checkpoint file. Safe for concurrent use
// by fetch workers.
type Manager struct {
	path string
	log  logger.Logger

	mu    sync.Mutex
	state *Checkpoint
}

// NewManager opens (or creates) the checkpoint under dir.
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	m := &Manager{
		path: filepath.Join(dir, "scrape.checkpoint.json"),
		log:  log.WithField("component", "checkpoint"),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		now := time.Now()
		m.state = &Checkpoint{
			Fetched:   make(map[string]time.Time),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if cp.Fetched == nil {
		cp.Fetched = make(map[string]time.Time)
	}
	m.state = &cp
	return nil
}

// IsFetched reports whether username completed in a previous run.
func (m *Manager) IsFetched(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state.Fetched[username]
	return ok
}

// MarkFetched records username as completed and persists the state.
func (m *Manager) MarkFetched(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Fetched[username] = time.Now()
	m.state.UpdatedAt = time.Now()
	return m.save()
}

// Reset discards all recorded progress.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.state = &Checkpoint{
		Fetched:   make(map[string]time.Time),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	m.log.Info("Checkpoint reset")
	return nil
}

// FetchedCount returns how many identities are recorded as done.
func (m *Manager) FetchedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.Fetched)
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}
