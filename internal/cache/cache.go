// Package cache stores generated plan payloads keyed by normalized request parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a generated plan stays reusable.
const DefaultTTL = 12 * time.Hour

// Store is a key/value store with expiry. Expired entries are reported as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
}

type keyMaterial struct {
	Request    any    `json:"request"`
	Tier       string `json:"tier"`
	Validation bool   `json:"validation"`
}

// Key derives a cache key from request fields, the tier and the validation flag.
// request must marshal deterministically (structs, sorted maps).
func Key(request any, tier string, validation bool) (string, error) {
	data, err := json.Marshal(keyMaterial{Request: request, Tier: tier, Validation: validation})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return "plan:" + hex.EncodeToString(sum[:]), nil
}

type entry struct {
	payload   []byte
	createdAt time.Time
}

// MemoryStore is a process-local store. Entries are never evicted, only ignored once expired.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.now().Sub(e.createdAt) > s.ttl {
		return nil, false, nil
	}
	return e.payload, true, nil
}

// Set stores payload under key. Concurrent writers for one key: last writer wins.
func (s *MemoryStore) Set(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	s.entries[key] = entry{payload: append([]byte(nil), payload...), createdAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = map[string]entry{}
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
