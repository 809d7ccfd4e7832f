package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("img", "text", "opinion=1")
	assert.Equal(t, a, Fingerprint("img", "text", "opinion=1"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Fingerprint("img", "text", "opinion=0"))
	assert.NotEqual(t, Fingerprint("a||b"), Fingerprint("a", "b", ""))
	assert.Equal(t, Fingerprint("a||b"), Fingerprint("a", "b"))
}

func TestGetSetAndCounters(t *testing.T) {
	c := New[string](time.Minute, 10, nil)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
	assert.InDelta(t, 0.5, c.HitRate(), 1e-9)
}

func TestExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[int](time.Second, 10, nil)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(500 * time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](0, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCloneIsolatesCallers(t *testing.T) {
	clone := func(s []string) []string { return append([]string(nil), s...) }
	c := New[[]string](time.Minute, 4, clone)

	in := []string{"x"}
	c.Set("k", in)
	in[0] = "mutated"

	out, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, out)
	out[0] = "again"

	out2, _ := c.Get("k")
	assert.Equal(t, []string{"x"}, out2)
}

func TestDeleteAndNil(t *testing.T) {
	c := New[int](time.Minute, 4, nil)
	c.Set("k", 1)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
	c.Set("a", 3)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	var nilCache *LRU[int]
	nilCache.Purge()
	nilCache.Set("k", 1)
	_, ok = nilCache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, nilCache.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 50, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				k := fmt.Sprintf("k%d", (i*j)%80)
				c.Set(k, j)
				_, _ = c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
