package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketOwners   = []byte("owners")
	bucketBindings = []byte("bindings")
)

// BoltStore keeps account records in a local bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the store at path.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketOwners, bucketBindings} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func bindingKey(ownerID, accountID string) []byte {
	return []byte(ownerID + "/" + accountID)
}

func (s *BoltStore) OwnerOf(_ context.Context, principal string) (string, error) {
	var ownerID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketOwners).Get([]byte(principal))
		if v == nil {
			return ErrNotFound
		}
		ownerID = string(v)
		return nil
	})
	return ownerID, err
}

func (s *BoltStore) Binding(_ context.Context, ownerID, accountID string) (*Binding, error) {
	var b Binding
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBindings).Get(bindingKey(ownerID, accountID))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BoltStore) PutOwner(_ context.Context, principal, ownerID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOwners).Put([]byte(principal), []byte(ownerID))
	})
}

func (s *BoltStore) PutBinding(_ context.Context, b Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal binding: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBindings).Put(bindingKey(b.OwnerID, b.AccountID), value)
	})
}

func (s *BoltStore) SetTagged(_ context.Context, ownerID, accountID string, tagged bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBindings)
		key := bindingKey(ownerID, accountID)
		v := bucket.Get(key)
		if v == nil {
			return ErrNotFound
		}

		var b Binding
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("unmarshal binding: %w", err)
		}
		b.IsResourcesTagged = tagged

		value, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal binding: %w", err)
		}
		return bucket.Put(key, value)
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
