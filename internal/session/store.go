package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoValue is returned by Store.Get and Store.Take when the key holds
// nothing for that session.
var ErrNoValue = errors.New("session: no value")

// Store persists per-session values by opaque session id. Implementations
// must make Take an atomic read-and-remove: two concurrent Takes for the same
// (session, key) must never both observe the value.
type Store interface {
	Get(ctx context.Context, sid, key string) ([]byte, error)
	Set(ctx context.Context, sid, key string, val []byte, ttl time.Duration) error
	Take(ctx context.Context, sid, key string) ([]byte, error)
	Delete(ctx context.Context, sid, key string) error
}
