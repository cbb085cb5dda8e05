package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// memoryStore keeps the document as JSON so tests see the same copy semantics
// as a real backend.
type memoryStore struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (m *memoryStore) Load(_ context.Context, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	if m.data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(m.data, v)
}

func (m *memoryStore) Save(_ context.Context, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

var errBoom = errors.New("boom")
