package installation

import (
	"context"
	"strings"
	"sync"
)

// Mock is an in-memory installation store for testing.
type Mock struct {
	mu    sync.RWMutex
	items map[string]Installation

	// Fail, when set, is returned by every delete (simulated outage).
	Fail error
}

func NewMock() *Mock {
	return &Mock{items: make(map[string]Installation)}
}

func (m *Mock) Save(_ context.Context, inst *Installation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range split(inst) {
		m.items[item.ID] = item
	}
	return nil
}

func (m *Mock) FindBot(_ context.Context, tenantID string) (*Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.items[botKey(tenantID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &inst, nil
}

func (m *Mock) DeleteUser(_ context.Context, tenantID, userID string) error {
	return m.delete(userKey(tenantID, userID))
}

func (m *Mock) DeleteBot(_ context.Context, tenantID string) error {
	return m.delete(botKey(tenantID))
}

func (m *Mock) DeleteAll(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for id := range m.items {
		if strings.HasPrefix(id, tenantPrefix(tenantID)) {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *Mock) delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	delete(m.items, id)
	return nil
}

// Has reports whether an item with the given user ID exists for the
// tenant; an empty userID checks the bot item.
func (m *Mock) Has(tenantID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id := botKey(tenantID)
	if userID != "" {
		id = userKey(tenantID, userID)
	}
	_, ok := m.items[id]
	return ok
}

// Count returns the number of items stored for the tenant.
func (m *Mock) Count(tenantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for id := range m.items {
		if strings.HasPrefix(id, tenantPrefix(tenantID)) {
			n++
		}
	}
	return n
}
