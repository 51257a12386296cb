package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/jllhz8912/sena/pkg/utils"
)

// FileBackend keeps every key in one JSON object file, the way browser
// key-value storage keeps them in one origin. Writes replace the file
// atomically.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend returns a backend over the file at path. The file is
// created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read implements Backend.
//
// A file that is not a JSON object is returned whole, so a bare record array
// (an older single-key file) still loads and anything else is reported as
// corrupt by the store.
func (b *FileBackend) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.readFile()
	if err != nil || data == nil {
		return nil, err
	}

	entries, ok := decodeEntries(data)
	if !ok {
		return data, nil
	}
	return entries[key], nil
}

// Write implements Backend.
func (b *FileBackend) Write(_ context.Context, key string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("value for key %s is not valid JSON", key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.entries()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(data)
	return b.store(entries)
}

// Delete implements Backend.
func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.entries()
	if err != nil {
		return err
	}
	delete(entries, key)
	return b.store(entries)
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }

// readFile returns the file content, or nil if the file does not exist.
func (b *FileBackend) readFile() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return data, nil
}

// entries returns the decoded file. Content that is not a JSON object is
// replaced by an empty map, so the next write starts a clean file.
func (b *FileBackend) entries() (map[string]json.RawMessage, error) {
	data, err := b.readFile()
	if err != nil {
		return nil, err
	}
	if entries, ok := decodeEntries(data); ok {
		return entries, nil
	}
	return make(map[string]json.RawMessage), nil
}

func decodeEntries(data []byte) (map[string]json.RawMessage, bool) {
	entries := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return entries, true
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}
	return entries, true
}

func (b *FileBackend) store(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", b.path, err)
	}
	return utils.WriteFileAtomic(b.path, data, 0o644)
}
