package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

const schemaVersion = 1

// envelope wraps a snapshot with the schema version and save timestamp
// the store layer adds transparently.
type envelope struct {
	domain.Snapshot
	SchemaVersion int   `json:"_v"`
	SavedAtMs     int64 `json:"_savedAt"`
}

// SnapshotStore is the in-memory fallback backend. It honors the same
// TTL contract as the redis backend and eagerly evicts expired entries
// on read.
type SnapshotStore struct {
	defaultTTL time.Duration
	prefix     string
	clock      func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	payload  []byte
	expireAt time.Time
}

func NewSnapshotStore(defaultTTL time.Duration, prefix string) *SnapshotStore {
	return &SnapshotStore{
		defaultTTL: defaultTTL,
		prefix:     prefix,
		clock:      time.Now,
		entries:    make(map[string]entry),
	}
}

// NewSnapshotStoreWithClock allows deterministic expiry in tests.
func NewSnapshotStoreWithClock(defaultTTL time.Duration, prefix string, clock func() time.Time) *SnapshotStore {
	store := NewSnapshotStore(defaultTTL, prefix)
	store.clock = clock
	return store
}

func (s *SnapshotStore) Save(_ context.Context, pin string, snap domain.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	payload, err := json.Marshal(envelope{
		Snapshot:      snap,
		SchemaVersion: schemaVersion,
		SavedAtMs:     s.clock().UnixMilli(),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.key(pin)] = entry{payload: payload, expireAt: s.clock().Add(ttl)}
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, pin string) (domain.Snapshot, error) {
	key := s.key(pin)

	s.mu.Lock()
	hit, ok := s.entries[key]
	if ok && s.clock().After(hit.expireAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	var env envelope
	if err := json.Unmarshal(hit.payload, &env); err != nil {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return env.Snapshot, nil
}

func (s *SnapshotStore) Delete(_ context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, s.key(pin))
	return nil
}

func (s *SnapshotStore) Ping(_ context.Context) domain.StoreHealth {
	return domain.StoreHealth{OK: true, Mode: s.Mode()}
}

func (s *SnapshotStore) Mode() string {
	return "memory"
}

func (s *SnapshotStore) key(pin string) string {
	return s.prefix + pin
}
