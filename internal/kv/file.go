package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*File)(nil)

// File persists values as one JSON object. Every write replaces the file
// through a rename so a crash never leaves it half written. A file that does
// not parse is treated as empty and overwritten on the next write.
type File struct {
	path string
	log  *slog.Logger

	mu     sync.Mutex
	values map[string]string
}

// OpenFile loads path, creating its directory when needed.
func OpenFile(path string, log *slog.Logger) (*File, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("kv: create dir: %w", err)
	}

	f := &File{path: path, log: log, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("kv: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		log.Warn("discarding unreadable state file", "path", path, "error", err)
		f.values = make(map[string]string)
	}
	return f, nil
}

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flush()
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: rename: %w", err)
	}
	return nil
}
