package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/quantmind-br/ipkg/internal/control"
)

const (
	bucketFeeds = "feeds"
	bucketMeta  = "meta"

	keyLastRefresh = "last_refresh"
)

// Cache persists parsed feed records between runs using BoltDB. One
// sub-bucket per feed, one JSON-encoded record per key.
type Cache struct {
	db *bbolt.DB
}

// OpenCache opens or creates the feed cache, creating its directory when
// missing.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open feed cache: %w", err)
	}

	// Ensure buckets exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketFeeds)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketMeta)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// ReplaceAll rewrites the cache with the outcome of a refresh. Feeds absent
// from the new set are dropped, so the cache always mirrors exactly one
// refresh.
func (c *Cache) ReplaceAll(feeds map[string][]*control.Record) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketFeeds))
		if root == nil {
			return fmt.Errorf("feeds bucket not found")
		}

		var stale [][]byte
		err := root.ForEachBucket(func(name []byte) error {
			if _, ok := feeds[string(name)]; !ok {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range stale {
			if err := root.DeleteBucket(name); err != nil {
				return err
			}
		}

		for feed, records := range feeds {
			if root.Bucket([]byte(feed)) != nil {
				if err := root.DeleteBucket([]byte(feed)); err != nil {
					return err
				}
			}
			bucket, err := root.CreateBucket([]byte(feed))
			if err != nil {
				return err
			}
			for _, rec := range records {
				data, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("failed to marshal record %s: %w", rec.ID(), err)
				}
				if err := bucket.Put([]byte(rec.ID()), data); err != nil {
					return err
				}
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		return meta.Put([]byte(keyLastRefresh), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// Load reads every cached record back, grouped by feed.
func (c *Cache) Load() (map[string][]*control.Record, error) {
	feeds := make(map[string][]*control.Record)
	err := c.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketFeeds))
		if root == nil {
			return fmt.Errorf("feeds bucket not found")
		}
		return root.ForEachBucket(func(name []byte) error {
			bucket := root.Bucket(name)
			feed := string(name)
			return bucket.ForEach(func(_, data []byte) error {
				var rec control.Record
				if err := json.Unmarshal(data, &rec); err != nil {
					return fmt.Errorf("failed to unmarshal cached record in feed %s: %w", feed, err)
				}
				feeds[feed] = append(feeds[feed], &rec)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// LastRefresh returns when the cache was last rewritten, or the zero time
// when no refresh has happened yet.
func (c *Cache) LastRefresh() (time.Time, error) {
	var ts time.Time
	err := c.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		raw := meta.Get([]byte(keyLastRefresh))
		if raw == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, string(raw))
		if err != nil {
			return fmt.Errorf("failed to parse last refresh time: %w", err)
		}
		ts = parsed
		return nil
	})
	return ts, err
}
