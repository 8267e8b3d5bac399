// Package snapshot mirrors full listing payloads to durable JSON files on
// local disk for export/audit consumers.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Sink writes indented JSON snapshots into a directory.
type Sink struct {
	dir string
}

// NewSink constructs a Sink rooted at dir.
func NewSink(dir string) *Sink {
	if dir == "" {
		dir = "."
	}
	return &Sink{dir: dir}
}

// Mirror serialises v into <dir>/<name> atomically via a temp-file rename so
// readers never observe a partially written snapshot.
func (s *Sink) Mirror(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", s.dir, err)
	}
	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".*")
	if err != nil {
		return fmt.Errorf("snapshot: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", name, err)
	}
	return nil
}
