package store

import (
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var artifactBucket = []byte("artifacts")

// BlobStore holds artifact bytes outside the relational store (§3: "File/
// image/markdown blob stored outside the relational store"). The
// relational Store keeps only Artifact metadata (mime type, size,
// StoragePath); StoragePath here is the artifact id itself, a bbolt key.
type BlobStore struct {
	db *bolt.DB
}

// OpenBlobStore opens (creating if absent) a bbolt database at path.
func OpenBlobStore(path string) (*BlobStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init artifact bucket: %w", err)
	}

	return &BlobStore{db: db}, nil
}

// Put writes data under id, overwriting any previous blob for that id.
func (b *BlobStore) Put(id uuid.UUID, data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactBucket).Put(id[:], data)
	})
}

// Get returns a copy of the blob stored under id.
func (b *BlobStore) Get(id uuid.UUID) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(artifactBucket).Get(id[:])
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the blob stored under id, if any.
func (b *BlobStore) Delete(id uuid.UUID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactBucket).Delete(id[:])
	})
}

func (b *BlobStore) Close() error {
	return b.db.Close()
}
