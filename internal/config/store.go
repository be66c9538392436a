package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store defines persistence operations for the key-value app config.
type Store interface {
	Get() (map[string]any, error)
	Save(partial map[string]any) (map[string]any, error)
}

// JSONStore persists config in a single JSON file on disk.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore creates a JSON-backed config store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Get reads the stored config merged over defaults.
func (s *JSONStore) Get() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read()
	if err != nil {
		return nil, err
	}
	return Merge(Defaults(), stored), nil
}

// Save merges partial into the stored config and writes it back as indented JSON.
func (s *JSONStore) Save(partial map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read()
	if err != nil {
		slog.Warn("config file unreadable, overwriting", "path", s.path, "error", err)
		stored = map[string]any{}
	}
	merged := Merge(stored, partial)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return nil, err
	}
	return merged, nil
}

// read returns the raw stored mapping, or an empty one when the file is missing.
func (s *JSONStore) read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg, nil
}

// Merge returns a copy of dst with src merged in recursively.
// Nested objects are merged key by key; arrays and scalars from src replace dst wholesale.
func Merge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for key, value := range dst {
		out[key] = value
	}

	for key, value := range src {
		srcMap, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}
		dstMap, _ := out[key].(map[string]any)
		out[key] = Merge(dstMap, srcMap)
	}
	return out
}

// Lookup walks a dotted key path such as "groq.model".
func Lookup(cfg map[string]any, path ...string) (any, bool) {
	var current any = cfg
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns a string value at path or an empty string.
func String(cfg map[string]any, path ...string) string {
	value, ok := Lookup(cfg, path...)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// Int returns an integer value at path. JSON numbers decode as float64.
func Int(cfg map[string]any, path ...string) (int, bool) {
	value, ok := Lookup(cfg, path...)
	if !ok {
		return 0, false
	}
	switch n := value.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
