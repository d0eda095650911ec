// Package cache stores compiled fragment output with LRU eviction and TTL
// expiry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/merger"
)

// Cache holds serialized compiler output keyed by fragment content. Sizes
// are counted in bytes of stored value.
type Cache struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	// LRU list with dummy head and tail
	head *entry
	tail *entry

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

type entry struct {
	key       string
	value     []byte
	createdAt time.Time
	size      int64
	prev      *entry
	next      *entry
}

// Stats is a snapshot of cache usage.
type Stats struct {
	Entries   int     `json:"entries" yaml:"entries"`
	Size      int64   `json:"size" yaml:"size"`
	MaxSize   int64   `json:"max_size" yaml:"max_size"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	Sets      int64   `json:"sets" yaml:"sets"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
}

// New creates a cache bounded to maxSize bytes. A non-positive maxSize
// disables storage; a non-positive ttl means entries never expire.
func New(maxSize int64, ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		head:    &entry{},
		tail:    &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Key derives the cache key for a fragment's category and content.
func Key(category fragment.Category, content string) string {
	h := sha256.New()
	h.Write([]byte(category.String()))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the stored value for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if c.expired(e) {
		c.remove(e)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set stores value under key, evicting least recently used entries to stay
// within the size bound. Values larger than the bound are not stored.
func (c *Cache) Set(key string, value []byte) {
	size := int64(len(value))
	if size > c.maxSize {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.currentSize += size - e.size
		e.value = value
		e.size = size
		e.createdAt = c.now()
		c.moveToFront(e)
		c.evictIfNeeded(0)
		atomic.AddInt64(&c.sets, 1)
		return
	}

	c.evictIfNeeded(size)

	e := &entry{key: key, value: value, createdAt: c.now(), size: size}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
	atomic.AddInt64(&c.sets, 1)
}

// GetOutputs returns the compiled outputs stored under key.
func (c *Cache) GetOutputs(key string) ([]merger.Output, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var outs []merger.Output
	if err := json.Unmarshal(data, &outs); err != nil {
		return nil, false
	}
	return outs, true
}

// SetOutputs stores compiled outputs under key.
func (c *Cache) SetOutputs(key string, outs []merger.Output) error {
	data, err := json.Marshal(outs)
	if err != nil {
		return err
	}
	c.Set(key, data)
	return nil
}

// Clear removes every entry and resets the counters.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.sets, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mutex.Lock()
	s := Stats{
		Entries: len(c.entries),
		Size:    c.currentSize,
		MaxSize: c.maxSize,
	}
	c.mutex.Unlock()

	s.Hits = atomic.LoadInt64(&c.hits)
	s.Misses = atomic.LoadInt64(&c.misses)
	s.Sets = atomic.LoadInt64(&c.sets)
	s.Evictions = atomic.LoadInt64(&c.evictions)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl
}

func (c *Cache) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		c.remove(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *Cache) remove(e *entry) {
	c.removeFromList(e)
	delete(c.entries, e.key)
	c.currentSize -= e.size
}

func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *Cache) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}
