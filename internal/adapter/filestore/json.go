package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// JSONStore is a cache.Store holding one JSON object keyed by town.
type JSONStore[V any] struct {
	path string
}

// NewJSONStore returns a JSONStore for path.
func NewJSONStore[V any](path string) *JSONStore[V] {
	return &JSONStore[V]{path: path}
}

// Load reads the file. A missing or empty file yields an empty map.
func (s *JSONStore[V]) Load(_ context.Context) (map[string]V, error) {
	out := make(map[string]V)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return out, nil
}

// Save rewrites the file. encoding/json sorts map keys, so output is stable.
func (s *JSONStore[V]) Save(_ context.Context, entries map[string]V) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}
