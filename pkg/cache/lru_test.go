package cache

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteLen(s string) int64 { return int64(len(s)) }

func TestPutGet(t *testing.T) {
	c := New[string, string](100, byteLen)

	require.True(t, c.Put("a", "hello"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, int64(5), c.Size())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, string](10, byteLen)
	var evicted []string
	c.OnEvict(func(k string, _ string) { evicted = append(evicted, k) })

	c.Put("a", "aaaa")
	c.Put("b", "bbbb")
	_, _ = c.Get("a") // b is now the oldest
	c.Put("c", "cccc")

	assert.Equal(t, []string{"b"}, evicted)
	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())
}

func TestReplaceUpdatesSize(t *testing.T) {
	c := New[string, string](10, byteLen)
	c.Put("a", "aaaa")
	c.Put("a", "aa")

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Size())
}

func TestOversizedValueRejected(t *testing.T) {
	c := New[string, string](3, byteLen)
	c.Put("a", "a")

	assert.False(t, c.Put("big", "bigger"))
	_, ok := c.Get("a")
	assert.True(t, ok, "rejecting a value must not evict others")
}

func TestRemoveAndClear(t *testing.T) {
	c := New[string, string](100, byteLen)
	c.Put("a", "1")
	c.Put("b", "22")

	c.Remove("a")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
}

func TestImageCache(t *testing.T) {
	c := NewImageCache(2 * 10 * 10 * 4)
	c.Put("one", image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	c.Put("two", image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	c.Put("three", image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("one")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, string](1000, byteLen)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Put(n*1000+j, "xxxxx")
				c.Get(n*1000 + j - 1)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), int64(1000))
}
