//go:build integration

package autosave

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"censo/internal/domain/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedisStore_Integration(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, "censo:autosave:", time.Minute)
	ctx := context.Background()
	draftID := uuid.New()

	require.NoError(t, store.Save(ctx, &service.AutoSave{
		DraftID: draftID,
		Payload: json.RawMessage(`{"familia":{"apellido":"Gómez"}}`),
		SavedAt: time.Now().UTC(),
	}))

	ttl, err := client.TTL(ctx, "censo:autosave:"+draftID.String()).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
	assert.LessOrEqual(t, ttl, time.Minute)

	loaded, err := store.Load(ctx, draftID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"familia":{"apellido":"Gómez"}}`, string(loaded.Payload))

	require.NoError(t, store.Delete(ctx, draftID))
	_, err = store.Load(ctx, draftID)
	assert.ErrorIs(t, err, service.ErrAutoSaveNotFound)
}
