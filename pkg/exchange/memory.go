package exchange

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps pending records in process memory. Suitable for a
// single replica, use the Valkey store when running more than one.
type MemoryStore struct {
	ttl  time.Duration
	now  func() time.Time
	lock sync.Mutex

	records map[string]*Record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]*Record),
	}
}

func (s *MemoryStore) Put(_ context.Context, record *Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.now()
	for code, stale := range s.records {
		if now.Sub(stale.CreatedAt) > s.ttl {
			delete(s.records, code)
		}
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	s.records[record.Code] = record
	return nil
}

func (s *MemoryStore) TakeOnce(_ context.Context, code string) (*Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	record, ok := s.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.records, code)

	if s.now().Sub(record.CreatedAt) > s.ttl {
		return nil, ErrNotFound
	}
	return record, nil
}
