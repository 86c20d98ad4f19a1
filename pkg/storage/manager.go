// Package storage handles on-disk layout for collected media and
// report artifacts.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSizeExceeded marks a stream that grew past the configured cap.
var ErrSizeExceeded = fmt.Errorf("stream exceeded size limit")

// Manager owns a base output directory and writes files into it
// atomically. Safe for concurrent use; every write goes through a
// temp file and rename, so a failed or aborted write never leaves a
// partial file at the destination.
type Manager struct {
	baseDir string
}

// NewManager creates the base directory and returns a manager for it.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the base output directory.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// UserDir creates the per-user directory tree (images/ and videos/
// subfolders) and returns the user directory path.
func (m *Manager) UserDir(username string) (string, error) {
	userDir := filepath.Join(m.baseDir, username)
	for _, dir := range []string{userDir, filepath.Join(userDir, "images"), filepath.Join(userDir, "videos")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return userDir, nil
}

// Exists reports whether path points at an existing file.
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveStream writes r to path. When maxBytes is positive and the
// stream exceeds it, the write aborts with ErrSizeExceeded and nothing
// is left at path.
func (m *Manager) SaveStream(r io.Reader, path string, maxBytes int64) (int64, error) {
	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	var written int64
	if maxBytes > 0 {
		written, err = io.Copy(out, io.LimitReader(r, maxBytes+1))
		if err == nil && written > maxBytes {
			err = ErrSizeExceeded
		}
	} else {
		written, err = io.Copy(out, r)
	}
	closeErr := out.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return written, nil
}

// SaveJSON marshals v with indentation and writes it atomically.
func (m *Manager) SaveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// LoadJSON reads path into v.
func (m *Manager) LoadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
