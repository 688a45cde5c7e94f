package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestStorage(t)

	status, ok, err := SchemaStatus(ctx, db)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MigrationStatus{Version: 2}, status)

	sealed, err := NewEncryptedStore(db, testKey)
	require.NoError(t, err)
	status, ok, err = SchemaStatus(ctx, sealed)
	require.NoError(t, err)
	assert.True(t, ok, "found through the encryption wrapper")
	assert.Equal(t, uint(2), status.Version)

	rs, _ := newTestRedisStore(t)
	_, ok, err = SchemaStatus(ctx, rs)
	require.NoError(t, err)
	assert.False(t, ok)
}
