// Package storage holds values published to the network.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Melenium2/dht/internal/node"
)

// DefaultTTL is the lifetime of stored value if nobody republishes it.
const DefaultTTL = 24 * time.Hour

// ErrEmptyKey returned for uninitialized key.
var ErrEmptyKey = errors.New("empty key")

// Store is the key/value collaborator of the node.
type Store interface {
	Get(key node.ID) ([]byte, bool)
	Put(key node.ID, value []byte) error
}

type item struct {
	data    []byte
	expires time.Time
}

// Memory stores values in memory for a limited amount of time.
type Memory struct {
	mu    sync.RWMutex
	items map[node.ID]item
	ttl   time.Duration
}

// NewMemory creates store, values are dropped after ttl. Non-positive ttl
// means DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Memory{
		items: make(map[node.ID]item),
		ttl:   ttl,
	}
}

// Put removes stale values and stores a copy of value. Storing under the
// same key again refreshes the lifetime.
func (m *Memory) Put(key node.ID, value []byte) error {
	if key.IsZero() {
		return fmt.Errorf("%w, can not store value", ErrEmptyKey)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.cleanup(now)

	m.items[key] = item{
		data:    append([]byte(nil), value...),
		expires: now.Add(m.ttl),
	}

	return nil
}

// Get returns copy of the value. Expired values are never returned.
func (m *Memory) Get(key node.ID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[key]
	if !ok || !time.Now().Before(it.expires) {
		return nil, false
	}

	return append([]byte(nil), it.data...), true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

func (m *Memory) cleanup(now time.Time) {
	for key, it := range m.items {
		if !now.Before(it.expires) {
			delete(m.items, key)
		}
	}
}
