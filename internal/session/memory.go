package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. It backs tests and single-node
// development runs; the mutex gives Take the same read-and-remove atomicity
// the redis GETDEL provides.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sid+":"+key]
	if !ok || s.expired(e) {
		delete(s.entries, sid+":"+key)
		return nil, ErrNoValue
	}
	return e.val, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.entries[sid+":"+key] = memoryEntry{val: val, expiresAt: expires}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, sid, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sid+":"+key]
	delete(s.entries, sid+":"+key)
	if !ok || s.expired(e) {
		return nil, ErrNoValue
	}
	return e.val, nil
}

func (s *MemoryStore) Delete(_ context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sid+":"+key)
	return nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}
