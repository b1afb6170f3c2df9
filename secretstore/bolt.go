package secretstore

import (
	"context"
	"fmt"
	"log/slog"

	bolt "go.etcd.io/bbolt"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

var secretsBucket = []byte("secrets")

// BoltStore implements a SecretStore on top of an embedded bbolt database.
// All secrets live in a single bucket keyed by secret ID.
type BoltStore struct {
	db  *bolt.DB
	log *slog.Logger
}

// NewBoltStore opens (or creates) the database at path and ensures the
// secrets bucket exists.
func NewBoltStore(path string, log *slog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening bolt database: %v", interfaces.ErrStoreUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(secretsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating secrets bucket: %v", interfaces.ErrStoreUnavailable, err)
	}
	return &BoltStore{db: db, log: log}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load implements interfaces.SecretStore.
func (s *BoltStore) Load(ctx context.Context, id interfaces.SecretID) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(secretsBucket).Get([]byte(id))
		if stored == nil {
			return interfaces.ErrSecretNotFound
		}
		data = make([]byte, len(stored))
		copy(data, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save implements interfaces.SecretStore.
func (s *BoltStore) Save(ctx context.Context, id interfaces.SecretID, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(secretsBucket).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}

// Delete implements interfaces.SecretStore.
func (s *BoltStore) Delete(ctx context.Context, id interfaces.SecretID) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(secretsBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}
