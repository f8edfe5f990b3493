package widget

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/popkit/popkit/internal/model"
)

// cacheRetention is how long a fallback snapshot stays usable without a
// refresh. Past it the snapshot is treated as a miss and discarded.
const cacheRetention = 48 * time.Hour

var cacheBucket = []byte("fallback_cache")

// FallbackCache is one persisted snapshot of recent events for a site,
// plus the index of the last event shown so the no-repeat rule survives
// page reloads.
type FallbackCache struct {
	SiteID         string         `json:"site_id"`
	Events         []*model.Event `json:"events"`
	FetchedAt      time.Time      `json:"fetched_at"`
	LastShownIndex int            `json:"last_shown_index"`
}

// CacheStore persists fallback snapshots in a local bbolt file, keyed by the
// cleaned site API key so one file serves any number of embeds.
type CacheStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenCacheStore opens (creating if needed) the cache file at path.
func OpenCacheStore(path string) (*CacheStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	return &CacheStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database file.
func (c *CacheStore) Close() error {
	return c.db.Close()
}

// Load returns the snapshot stored under key, or (nil, nil) when there is no
// snapshot or the stored one has outlived the retention window. A snapshot
// exactly at the retention boundary counts as stale.
func (c *CacheStore) Load(key string) (*FallbackCache, error) {
	var cache *FallbackCache
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(cacheBucket).Get([]byte(model.CleanAPIKey(key)))
		if raw == nil {
			return nil
		}
		var fc FallbackCache
		if err := json.Unmarshal(raw, &fc); err != nil {
			return fmt.Errorf("decoding cache record: %w", err)
		}
		cache = &fc
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, nil
	}
	if c.now().Sub(cache.FetchedAt) >= cacheRetention {
		return nil, nil
	}
	return cache, nil
}

// Save stores the snapshot under key, replacing any previous one.
func (c *CacheStore) Save(key string, cache *FallbackCache) error {
	raw, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encoding cache record: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(model.CleanAPIKey(key)), raw)
	})
}

// SetLastShownIndex updates only the last-shown index of the stored snapshot.
// A missing snapshot is not an error; the write is simply skipped.
func (c *CacheStore) SetLastShownIndex(key string, index int) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		k := []byte(model.CleanAPIKey(key))
		raw := b.Get(k)
		if raw == nil {
			return nil
		}
		var fc FallbackCache
		if err := json.Unmarshal(raw, &fc); err != nil {
			return fmt.Errorf("decoding cache record: %w", err)
		}
		fc.LastShownIndex = index
		updated, err := json.Marshal(&fc)
		if err != nil {
			return fmt.Errorf("encoding cache record: %w", err)
		}
		return b.Put(k, updated)
	})
}
