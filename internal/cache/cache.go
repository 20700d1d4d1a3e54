// Package cache persists the last-alerted state per product across
// process restarts. It is the sole source of deduplication truth and is
// owned exclusively by the detector process.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"instamart-bot/internal/models"
)

// File is a JSON-file-backed alert cache with whole-file replace
// semantics: Load reads the full mapping, Save atomically rewrites it.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

// Load returns the persisted alert mapping. A missing or unreadable file
// yields an empty mapping, never an error: duplicate alerts are
// recoverable, silently suppressed ones are not.
func (f *File) Load() map[string]models.AlertEntry {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Alert cache unreadable, starting from empty", "path", f.path, "error", err)
		}
		return make(map[string]models.AlertEntry)
	}

	entries := make(map[string]models.AlertEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Alert cache corrupted, starting from empty", "path", f.path, "error", err)
		return make(map[string]models.AlertEntry)
	}
	return entries
}

// Save replaces the persisted mapping atomically: the new state is
// written to a temp file in the same directory and renamed over the old
// one, so a crash mid-write leaves the previous cache intact.
func (f *File) Save(entries map[string]models.AlertEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert cache: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace alert cache: %w", err)
	}
	return nil
}
