package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestSeal_RoundTrip(t *testing.T) {
	plaintext := []byte("refresh-token-value")

	sealed, err := Seal(testKey, plaintext, nil)
	require.NoError(t, err)
	assert.Greater(t, len(sealed), NonceSize)
	assert.NotContains(t, string(sealed), string(plaintext))

	opened, err := Open(testKey, sealed, nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSeal_InvalidKey(t *testing.T) {
	_, err := Seal([]byte("too-short"), []byte("data"), nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = Open([]byte("too-short"), []byte("data"), nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestOpen_Truncated(t *testing.T) {
	_, err := Open(testKey, []byte("short"), nil)
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := Seal(testKey, []byte("data"), nil)
	require.NoError(t, err)

	_, err = Open([]byte("fedcba9876543210fedcba9876543210"), sealed, nil)
	assert.Error(t, err)
}

func TestOpen_WrongLabel(t *testing.T) {
	sealed, err := Seal(testKey, []byte("data"), []byte("access_token"))
	require.NoError(t, err)

	_, err = Open(testKey, sealed, []byte("refresh_token"))
	assert.Error(t, err)

	opened, err := Open(testKey, sealed, []byte("access_token"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), opened)
}

func TestEncryptedStore(t *testing.T) {
	raw := newTestStorage(t)
	ctx := context.Background()

	_, err := NewEncryptedStore(raw, []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	store, err := NewEncryptedStore(raw, testKey)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, map[string][]byte{"access_token": []byte("secret-access")}))

	// The raw table never sees the plaintext
	rawValues, err := raw.Load(ctx)
	require.NoError(t, err)
	stored := rawValues["access_token"]
	assert.NotEqual(t, []byte("secret-access"), stored)

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret-access"), values["access_token"])

	// A different key cannot read the state
	other, err := NewEncryptedStore(raw, []byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	_, err = other.Load(ctx)
	assert.Error(t, err)

	// A value moved to another key is rejected
	require.NoError(t, raw.Save(ctx, map[string][]byte{"refresh_token": stored}))
	_, err = store.Load(ctx)
	assert.Error(t, err)
	require.NoError(t, raw.Delete(ctx, "refresh_token"))

	require.NoError(t, store.Delete(ctx, "access_token"))
	values, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}
