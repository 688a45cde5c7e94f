package storage

import (
	"context"
	"crypto/cipher"
	"fmt"
)

// EncryptedStore seals every value before it reaches the underlying store.
// Each value is bound to its key, so values copied between keys fail to open.
type EncryptedStore struct {
	db   KeyValueStore
	aead cipher.AEAD
}

func NewEncryptedStore(db KeyValueStore, key []byte) (*EncryptedStore, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedStore{db: db, aead: aead}, nil
}

func (es *EncryptedStore) Load(ctx context.Context) (map[string][]byte, error) {
	sealed, err := es.db.Load(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string][]byte, len(sealed))
	for key, value := range sealed {
		plaintext, err := open(es.aead, value, []byte(key))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
		values[key] = plaintext
	}
	return values, nil
}

func (es *EncryptedStore) Save(ctx context.Context, values map[string][]byte) error {
	sealed := make(map[string][]byte, len(values))
	for key, value := range values {
		ciphertext, err := seal(es.aead, value, []byte(key))
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		sealed[key] = ciphertext
	}
	return es.db.Save(ctx, sealed)
}

func (es *EncryptedStore) Delete(ctx context.Context, keys ...string) error {
	return es.db.Delete(ctx, keys...)
}

// Unwrap returns the store holding the sealed values.
func (es *EncryptedStore) Unwrap() KeyValueStore {
	return es.db
}

func (es *EncryptedStore) Close() error {
	return es.db.Close()
}
