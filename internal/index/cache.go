package index

import (
	"log"
	"sync"
	"time"
)

// Cache is the in-memory embedding cache, mirrored to a Store. It is loaded
// lazily on first use. Load and save failures are logged and degrade to an
// empty cache or a skipped save; callers never see them.
type Cache struct {
	store    *Store
	loadOnce sync.Once

	mu      sync.RWMutex
	records []EmbeddingRecord
	postIDs map[string]struct{}
}

func NewCache(store *Store) *Cache {
	return &Cache{
		store:   store,
		postIDs: make(map[string]struct{}),
	}
}

func (c *Cache) ensureLoaded() {
	c.loadOnce.Do(func() {
		records, err := c.store.Load()
		if err != nil {
			log.Printf("Warning: could not load embeddings cache %s, starting empty: %v", c.store.Path(), err)
			records = nil
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.records = records
		for _, r := range records {
			c.postIDs[r.PostID] = struct{}{}
		}
		if len(records) > 0 {
			log.Printf("Loaded %d cached embeddings", len(records))
		}
	})
}

// Records returns a snapshot of all records. The snapshot is safe to read
// while other goroutines append.
func (c *Cache) Records() []EmbeddingRecord {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records[:len(c.records):len(c.records)]
}

// HasPost reports whether any record exists for postID.
func (c *Cache) HasPost(postID string) bool {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.postIDs[postID]
	return ok
}

// Append adds records to the cache. It does not persist them.
func (c *Cache) Append(records ...EmbeddingRecord) {
	c.ensureLoaded()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, records...)
	for _, r := range records {
		c.postIDs[r.PostID] = struct{}{}
	}
}

// Save writes the full cache to disk, overwriting the previous file.
func (c *Cache) Save() {
	records := c.Records()
	if err := c.store.Save(records); err != nil {
		log.Printf("Error saving embeddings cache %s: %v", c.store.Path(), err)
		return
	}
	log.Printf("Embeddings cache saved: %d records", len(records))
}

// Clear drops every record from memory. The file is rewritten on the next Save.
func (c *Cache) Clear() {
	c.loadOnce.Do(func() {})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.postIDs = make(map[string]struct{})
}

// Count returns the number of records.
func (c *Cache) Count() int {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// PostCount returns the number of distinct posts with records.
func (c *Cache) PostCount() int {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.postIDs)
}

func (c *Cache) UpdatedAt() time.Time {
	return c.store.UpdatedAt()
}
