package autosave

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"censo/internal/domain/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStore(client, "censo:autosave:", time.Hour)
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()
	draftID := uuid.New()

	snapshot := &service.AutoSave{
		DraftID: draftID,
		Payload: json.RawMessage(`{"familia":{"apellido":"Pérez"}}`),
		SavedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, snapshot))
	assert.True(t, mr.Exists("censo:autosave:"+draftID.String()))
	assert.Equal(t, time.Hour, mr.TTL("censo:autosave:"+draftID.String()))

	loaded, err := store.Load(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, draftID, loaded.DraftID)
	assert.JSONEq(t, string(snapshot.Payload), string(loaded.Payload))
	assert.True(t, snapshot.SavedAt.Equal(loaded.SavedAt))

	require.NoError(t, store.Delete(ctx, draftID))
	_, err = store.Load(ctx, draftID)
	assert.ErrorIs(t, err, service.ErrAutoSaveNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()
	draftID := uuid.New()

	require.NoError(t, store.Save(ctx, &service.AutoSave{DraftID: draftID, Payload: json.RawMessage(`{}`)}))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, draftID)
	assert.ErrorIs(t, err, service.ErrAutoSaveNotFound)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, store := setupRedisStore(t)
	draftID := uuid.New()
	require.NoError(t, mr.Set("censo:autosave:"+draftID.String(), "not-json"))

	_, err := store.Load(context.Background(), draftID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrAutoSaveNotFound)
}
