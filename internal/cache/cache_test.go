package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/merger"
)

func TestCacheLRU(t *testing.T) {
	t.Run("eviction order", func(t *testing.T) {
		c := New(30, time.Hour)
		for i := 1; i <= 5; i++ {
			c.Set(fmt.Sprintf("key%d", i), []byte(fmt.Sprintf("value%d", i)))
		}
		for i := 1; i <= 5; i++ {
			_, found := c.Get(fmt.Sprintf("key%d", i))
			assert.True(t, found, "key%d should be present", i)
		}

		c.Set("key6", []byte("value6"))

		_, found := c.Get("key1")
		assert.False(t, found, "key1 is least recently used")
		for i := 2; i <= 6; i++ {
			_, found := c.Get(fmt.Sprintf("key%d", i))
			assert.True(t, found, "key%d should still be present", i)
		}
		assert.Equal(t, int64(1), c.Stats().Evictions)
	})

	t.Run("access refreshes recency", func(t *testing.T) {
		c := New(24, time.Hour)
		for i := 1; i <= 4; i++ {
			c.Set(fmt.Sprintf("key%d", i), []byte("value1"))
		}
		c.Get("key1")
		c.Set("key5", []byte("value5"))

		_, found := c.Get("key1")
		assert.True(t, found)
		_, found = c.Get("key2")
		assert.False(t, found)
	})

	t.Run("update adjusts size", func(t *testing.T) {
		c := New(100, time.Hour)
		c.Set("a", []byte("1234"))
		c.Set("a", []byte("12"))
		s := c.Stats()
		assert.Equal(t, 1, s.Entries)
		assert.Equal(t, int64(2), s.Size)
	})

	t.Run("oversized values are skipped", func(t *testing.T) {
		c := New(4, time.Hour)
		c.Set("big", []byte("12345"))
		_, found := c.Get("big")
		assert.False(t, found)
	})

	t.Run("zero size disables storage", func(t *testing.T) {
		c := New(0, time.Hour)
		c.Set("a", []byte("x"))
		assert.Equal(t, 0, c.Stats().Entries)
	})
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(100, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", []byte("v"))
	_, found := c.Get("k")
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found = c.Get("k")
	assert.False(t, found, "expired entries are dropped on read")
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheOutputs(t *testing.T) {
	c := New(1<<20, 0)
	key := Key(fragment.EmbeddedStyle, "<style>a{}</style>")
	outs := []merger.Output{{Type: merger.CSS, Content: "a{}"}}

	require.NoError(t, c.SetOutputs(key, outs))
	got, ok := c.GetOutputs(key)
	require.True(t, ok)
	assert.Equal(t, outs, got)

	_, ok = c.GetOutputs(Key(fragment.Markup, "<style>a{}</style>"))
	assert.False(t, ok, "the category is part of the key")
}

func TestCacheStats(t *testing.T) {
	c := New(100, time.Hour)
	c.Set("a", []byte("1"))
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Sets)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 0.0001)

	c.Clear()
	assert.Equal(t, Stats{MaxSize: 100}, c.Stats())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(512, time.Hour)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*31+i)%50)
				c.Set(key, []byte("0123456789"))
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	assert.LessOrEqual(t, s.Size, int64(512))
	assert.Equal(t, int64(s.Entries)*10, s.Size)
}
