// Package storage persists small pieces of widget state: a JSON file with
// local-storage semantics and a SQLite-backed settings store.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Local is a string key/value store kept in a single JSON file.
type Local struct {
	mu       sync.RWMutex
	filePath string
	items    map[string]string
}

// NewLocal loads the store from filePath, or starts empty if the file does
// not exist. Returns an error only on unexpected I/O or decode failures.
func NewLocal(filePath string) (*Local, error) {
	l := &Local{filePath: filePath, items: map[string]string{}}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return l, nil
	}

	if err := json.Unmarshal(data, &l.items); err != nil {
		return nil, err
	}
	if l.items == nil {
		l.items = map[string]string{}
	}
	return l, nil
}

// GetItem returns the value stored under key.
func (l *Local) GetItem(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.items[key]
	return v, ok
}

// SetItem stores value under key and writes the file.
func (l *Local) SetItem(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := copyItems(l.items)
	next[key] = value
	if err := l.writeAtomic(next); err != nil {
		return err
	}
	l.items = next
	return nil
}

// RemoveItem deletes key. Removing a missing key is a no-op.
func (l *Local) RemoveItem(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.items[key]; !ok {
		return nil
	}
	next := copyItems(l.items)
	delete(next, key)
	if err := l.writeAtomic(next); err != nil {
		return err
	}
	l.items = next
	return nil
}

// writeAtomic writes to a temp file then renames it over filePath.
// Caller must hold l.mu.
func (l *Local) writeAtomic(items map[string]string) error {
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp := l.filePath + ".tmp"
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, l.filePath)
}

func copyItems(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
