// Package storage persists resolver registrations across restarts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/agentries/agent-uri-go/pkg/dht"
)

// Store saves and restores registry snapshots.
type Store interface {
	// SaveSnapshot replaces the stored snapshot with the given
	// registrations.
	SaveSnapshot(regs []dht.Registration) error

	// LoadSnapshot returns the stored registrations, or nil when no
	// snapshot exists.
	LoadSnapshot() ([]dht.Registration, error)
}

// FileStore persists snapshots as a CBOR array in a single file, written
// atomically via a temp file rename.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path, creating parent directories
// as needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// SaveSnapshot implements Store.
func (f *FileStore) SaveSnapshot(regs []dht.Registration) error {
	data, err := cbor.Marshal(regs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot implements Store.
func (f *FileStore) LoadSnapshot() ([]dht.Registration, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var regs []dht.Registration
	if err := cbor.Unmarshal(data, &regs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return regs, nil
}

// NoopStore discards snapshots; used when persistence is disabled.
type NoopStore struct{}

// SaveSnapshot implements Store.
func (NoopStore) SaveSnapshot([]dht.Registration) error { return nil }

// LoadSnapshot implements Store.
func (NoopStore) LoadSnapshot() ([]dht.Registration, error) { return nil, nil }
