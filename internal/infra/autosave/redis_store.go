// Package autosave keeps the latest client-side snapshot of each survey draft.
package autosave

import (
	"context"
	"encoding/json"
	"time"

	"censo/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots as JSON strings under <prefix><draft id> with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed auto-save store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(draftID uuid.UUID) string {
	return s.prefix + draftID.String()
}

// Save overwrites the draft's snapshot and resets its expiry.
func (s *RedisStore) Save(ctx context.Context, snapshot *service.AutoSave) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to encode auto-save")
	}

	if err := s.client.Set(ctx, s.key(snapshot.DraftID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store auto-save")
	}

	return nil
}

// Load returns the snapshot, or ErrAutoSaveNotFound when it is missing or expired.
func (s *RedisStore) Load(ctx context.Context, draftID uuid.UUID) (*service.AutoSave, error) {
	data, err := s.client.Get(ctx, s.key(draftID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrAutoSaveNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load auto-save")
	}

	snapshot := &service.AutoSave{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to decode auto-save")
	}

	return snapshot, nil
}

// Delete removes the snapshot. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, draftID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(draftID)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete auto-save")
	}

	return nil
}
