package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

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

// SnapshotStore is the durable redis backend for session snapshots.
type SnapshotStore struct {
	client     *redis.Client
	defaultTTL time.Duration
	prefix     string
}

func NewSnapshotStore(client *redis.Client, defaultTTL time.Duration, prefix string) *SnapshotStore {
	return &SnapshotStore{client: client, defaultTTL: defaultTTL, prefix: prefix}
}

func (s *SnapshotStore) Save(ctx context.Context, pin string, snap domain.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	payload, err := json.Marshal(envelope{
		Snapshot:      snap,
		SchemaVersion: schemaVersion,
		SavedAtMs:     time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(pin), payload, ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, pin string) (domain.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(pin)).Bytes()
	if err == redis.Nil {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt payloads behave as absent, matching the read contract.
		log.Printf("store: discarding unreadable snapshot for pin %s: %v", pin, err)
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return env.Snapshot, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, pin string) error {
	return s.client.Del(ctx, s.key(pin)).Err()
}

func (s *SnapshotStore) Ping(ctx context.Context) domain.StoreHealth {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.StoreHealth{OK: false, Mode: s.Mode(), Error: err.Error()}
	}
	return domain.StoreHealth{OK: true, Mode: s.Mode()}
}

func (s *SnapshotStore) Mode() string {
	return "redis"
}

func (s *SnapshotStore) key(pin string) string {
	return s.prefix + pin
}
