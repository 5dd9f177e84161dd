package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryBlacklist keeps revocation entries in process memory. It only
// protects a single-instance deployment; distributed gateways need the
// Redis store so all instances share revocations.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryBlacklist creates an in-process revocation store with a
// background sweeper that drops expired entries.
func NewMemoryBlacklist(sweepInterval time.Duration) *MemoryBlacklist {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	b := &MemoryBlacklist{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}

	go b.sweep(sweepInterval)

	return b
}

// Revoke marks the token as invalid until ttl elapses
func (b *MemoryBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[token] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether the token has a live revocation entry
func (b *MemoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	expiresAt, ok := b.entries[token]
	if !ok {
		return false, nil
	}

	return time.Now().Before(expiresAt), nil
}

// Close stops the background sweeper
func (b *MemoryBlacklist) Close() {
	b.once.Do(func() {
		close(b.done)
	})
}

func (b *MemoryBlacklist) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			for token, expiresAt := range b.entries {
				if now.After(expiresAt) {
					delete(b.entries, token)
				}
			}
			b.mu.Unlock()
		}
	}
}

var _ TokenBlacklist = (*MemoryBlacklist)(nil)
