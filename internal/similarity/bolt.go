package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/shibest/mycelius/internal/models"
)

const (
	cacheDirPerm     = fs.FileMode(0o700)
	cacheFilePerm    = fs.FileMode(0o600)
	cacheOpenTimeout = 5 * time.Second
)

var similarityBucket = []byte("similarity")

// BoltCache keeps similarity entries in a local bbolt file.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) the cache file at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(similarityBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache db: %w", err)
	}

	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Get(ctx context.Context, key string) (*models.SimilarityCacheEntry, error) {
	var entry *models.SimilarityCacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(similarityBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		e, err := models.DecodeSimilarityCacheEntry(key, v)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	return entry, err
}

func (c *BoltCache) Put(ctx context.Context, entry *models.SimilarityCacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(similarityBucket).Put([]byte(entry.Key), data)
	})
}

func (c *BoltCache) Delete(ctx context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(similarityBucket).Delete([]byte(key))
	})
}

func (c *BoltCache) Clear(ctx context.Context) (int, error) {
	prefix := []byte(KeyPrefix)
	removed := 0

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(similarityBucket)

		var keys [][]byte
		cur := b.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			keys = append(keys, bytes.Clone(k))
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return removed, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
