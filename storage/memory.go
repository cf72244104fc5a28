package storage

import (
	"context"
	"sync"
)

// Memory is an in-process store, mainly useful for tests and single-node
// deployments. Entries live until the process exits.
type Memory struct {
	mu sync.RWMutex
	db map[string][]byte
}

// NewMemory creates an in-memory response store.
func NewMemory() *Memory {
	return &Memory{
		db: make(map[string][]byte),
	}
}

func (m *Memory) Retrieve(ctx context.Context, key string) (*Snapshot, bool, error) {
	m.mu.RLock()
	b, ok := m.db[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	snap, err := bytesToSnapshot(b)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (m *Memory) Store(ctx context.Context, key string, snap *Snapshot) error {
	b, err := snapshotToBytes(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db[key] = b
	return nil
}
