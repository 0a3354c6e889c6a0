package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Session is the mutable bag attached to one opaque session id. Writes are
// buffered in memory until Save, mirroring cookie-session semantics where a
// handler mutates the session and then flushes it before replying. Take goes
// straight to the store so its read-and-remove stays atomic.
type Session struct {
	ID    string
	store Store
	ttl   time.Duration

	pending map[string][]byte
	deleted map[string]bool
	isNew   bool
}

func newSession(id string, store Store, ttl time.Duration, isNew bool) *Session {
	return &Session{
		ID:      id,
		store:   store,
		ttl:     ttl,
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
		isNew:   isNew,
	}
}

// IsNew reports whether the session id was minted for this request rather
// than read from a valid cookie.
func (s *Session) IsNew() bool { return s.isNew }

// Get unmarshals the value under key into v. Unsaved writes win over stored
// state. Returns false when the key holds nothing.
func (s *Session) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	if s.deleted[key] {
		return false, nil
	}
	if raw, ok := s.pending[key]; ok {
		return true, json.Unmarshal(raw, v)
	}
	raw, err := s.store.Get(ctx, s.ID, key)
	if err == ErrNoValue {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}

// Set buffers a value; it is not visible to other connections until Save.
func (s *Session) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session marshal %q: %w", key, err)
	}
	s.pending[key] = raw
	delete(s.deleted, key)
	return nil
}

// Delete buffers a removal, applied on Save.
func (s *Session) Delete(key string) {
	delete(s.pending, key)
	s.deleted[key] = true
}

// Take atomically reads and removes the stored value under key, bypassing
// the write buffer. A second Take observes nothing even if it races the
// first: the backing store guarantees single consumption.
func (s *Session) Take(ctx context.Context, key string, v interface{}) (bool, error) {
	delete(s.pending, key)
	raw, err := s.store.Take(ctx, s.ID, key)
	if err == ErrNoValue {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}

// Save flushes buffered writes and deletions to the store. It must complete
// before the response leaves the handler: the paired stream request may
// arrive on a different connection and has to observe the write.
func (s *Session) Save(ctx context.Context) error {
	for key := range s.deleted {
		if err := s.store.Delete(ctx, s.ID, key); err != nil {
			return err
		}
	}
	for key, raw := range s.pending {
		if err := s.store.Set(ctx, s.ID, key, raw, s.ttl); err != nil {
			return err
		}
	}
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	return nil
}
