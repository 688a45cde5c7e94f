package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), &redis.Options{Addr: mr.Addr()}, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string][]byte{
		"access_token":  []byte("a"),
		"refresh_token": []byte("r"),
	}))
	assert.Equal(t, "a", mr.HGet(DefaultRedisKey, "access_token"))

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"access_token":  []byte("a"),
		"refresh_token": []byte("r"),
	}, values)

	require.NoError(t, store.Delete(ctx, "access_token", "refresh_token"))
	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRedisStore_Validation(t *testing.T) {
	_, err := NewRedisStore(context.Background(), &redis.Options{}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	store, _ := newTestRedisStore(t)
	assert.ErrorIs(t, store.Save(context.Background(), map[string][]byte{"": []byte("x")}), ErrInvalidInput)
	assert.ErrorIs(t, store.Delete(context.Background(), ""), ErrInvalidInput)
	assert.NoError(t, store.Save(context.Background(), nil))
}

func TestRedisStore_Encrypted(t *testing.T) {
	raw, mr := newTestRedisStore(t)
	store, err := NewEncryptedStore(raw, testKey)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string][]byte{"user": []byte(`{"id":1}`)}))
	assert.NotEqual(t, `{"id":1}`, mr.HGet(DefaultRedisKey, "user"))

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(values["user"]))
}
