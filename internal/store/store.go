// Package store persists the study document as a single JSON file.
//
// The store owns nothing but durability: Load returns the persisted document
// (or a fresh default on first run), Save atomically overwrites it, Reset
// clears it. All document mutation happens elsewhere; callers keep the
// in-memory document authoritative and treat a failed Save as fatal to that
// save only, not to the process.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/studentpro/studysync/internal/document"
)

// DefaultFilename is the store file name used under the data directory.
const DefaultFilename = "studysync.json"

// Store reads and writes the document at a fixed path.
type Store struct {
	path string
}

// New creates a store backed by the given file path. The parent directory is
// created on first Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the persisted document. A missing file yields a fresh
// default-initialized document. Older schema versions are migrated forward
// before being returned.
func (s *Store) Load() (*document.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document.New(), nil
		}
		return nil, fmt.Errorf("failed to read store file %s: %w", s.path, err)
	}

	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", s.path, err)
	}

	if doc.SchemaVersion < document.SchemaVersion {
		doc.Migrate()
	}
	return &doc, nil
}

// Save atomically overwrites the persisted document. The document is written
// to a temp file in the same directory and renamed into place, so a crash
// mid-write never leaves a torn file behind.
func (s *Store) Save(doc *document.Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".studysync-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file %s: %w", s.path, err)
	}
	return nil
}

// Reset removes the persisted state unconditionally. Missing state is not an
// error.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset store file %s: %w", s.path, err)
	}
	return nil
}
