package storage

import (
	"bytes"
	"sort"
)

type cacheEntry struct {
	value   []byte
	deleted bool
}

// CacheDB buffers writes on top of a parent database. Nothing reaches the
// parent until Commit; Discard drops every staged write. A CacheDB is the unit
// of atomicity for one top-level host call.
//
// CacheDB is not safe for concurrent use.
type CacheDB struct {
	parent Database
	dirty  map[string]cacheEntry
}

// NewCacheDB stages writes over parent.
func NewCacheDB(parent Database) *CacheDB {
	return &CacheDB{parent: parent, dirty: make(map[string]cacheEntry)}
}

func (c *CacheDB) Put(key []byte, value []byte) error {
	c.dirty[string(key)] = cacheEntry{value: append([]byte(nil), value...)}
	return nil
}

func (c *CacheDB) Get(key []byte) ([]byte, error) {
	if entry, ok := c.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	return c.parent.Get(key)
}

func (c *CacheDB) Has(key []byte) (bool, error) {
	if entry, ok := c.dirty[string(key)]; ok {
		return !entry.deleted, nil
	}
	return c.parent.Has(key)
}

func (c *CacheDB) Delete(key []byte) error {
	c.dirty[string(key)] = cacheEntry{deleted: true}
	return nil
}

// Iterate merges staged writes with the parent's view.
func (c *CacheDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	if err := c.parent.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	}); err != nil {
		return err
	}
	for k, entry := range c.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = entry.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), append([]byte(nil), merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}

// Write stages every operation of batch.
func (c *CacheDB) Write(batch *Batch) error {
	return batch.Replay(c.Put, c.Delete)
}

// Commit hands the staged writes to the parent as one batch and resets the
// buffer. When the parent rejects the batch nothing is written and the staged
// writes are kept so the caller can Discard them.
func (c *CacheDB) Commit() error {
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := NewBatch()
	for _, k := range keys {
		entry := c.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), entry.value)
		}
	}
	if err := c.parent.Write(batch); err != nil {
		return err
	}
	c.dirty = make(map[string]cacheEntry)
	return nil
}

// Discard drops every staged write.
func (c *CacheDB) Discard() {
	c.dirty = make(map[string]cacheEntry)
}

// Dirty reports the number of staged keys.
func (c *CacheDB) Dirty() int { return len(c.dirty) }

// Close is a no-op; the parent owns the underlying handle.
func (c *CacheDB) Close() {}
