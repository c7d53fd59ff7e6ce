package staffdir

import (
	"context"
	"sync"
)

type MockDirectory struct {
	entries map[string]*Entry
	lock    sync.RWMutex
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		entries: make(map[string]*Entry),
	}
}

func (d *MockDirectory) Save(entry *Entry) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.entries[entry.ExternalID] = entry
}

func (d *MockDirectory) FindByExternalID(_ context.Context, externalID string) (*Entry, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	entry, ok := d.entries[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}
