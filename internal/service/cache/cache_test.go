package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	N int `json:"n"`
}

type manualClock struct{ t time.Time }

func (m *manualClock) now() time.Time          { return m.t }
func (m *manualClock) advance(d time.Duration) { m.t = m.t.Add(d) }

func TestTTLCacheExpires(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache(WithClock(clk.now))
	c.Set("a", 1, 10*time.Millisecond)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.advance(20 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestFetchCachesSuccessOnly(t *testing.T) {
	c := NewTTLCache()
	calls := 0
	compute := func() (payload, error) {
		calls++
		return payload{N: calls}, nil
	}

	v, hit, err := Fetch(c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, v.N)

	v, hit, err = Fetch(c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v.N)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = Fetch(c, "e", time.Minute, func() (payload, error) { return payload{}, boom })
	assert.ErrorIs(t, err, boom)
	_, ok, _ := c.GetBytes("e")
	assert.False(t, ok)
}

func TestFetchWithoutCache(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := Fetch[payload](nil, "k", time.Minute, func() (payload, error) {
			calls++
			return payload{}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
}

func TestTTLCacheEvictsLeastRecentlyRead(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache(WithMaxEntries(2), WithClock(clk.now))

	c.Set("a", 1, 0)
	clk.advance(time.Second)
	c.Set("b", 2, 0)
	clk.advance(time.Second)
	_, _ = c.Get("a")
	clk.advance(time.Second)
	c.Set("c", 3, 0)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

type failingCache struct{ err error }

func (f failingCache) GetBytes(string) ([]byte, bool, error)        { return nil, false, f.err }
func (f failingCache) SetBytes(string, []byte, time.Duration) error { return f.err }

func TestLayeredCacheReadsThrough(t *testing.T) {
	l2 := NewTTLCache()
	require.NoError(t, l2.SetBytes("k", []byte("v"), time.Minute))
	l1 := NewTTLCache()
	c := NewLayeredCache(l1, l2, 5*time.Second)

	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(b))

	b, ok, _ = l1.GetBytes("k")
	assert.True(t, ok)
	assert.Equal(t, "v", string(b))

	_, ok, err = c.GetBytes("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredCacheWriteFailureSkipsL1(t *testing.T) {
	boom := errors.New("redis down")
	l1 := NewTTLCache()
	c := NewLayeredCache(l1, failingCache{err: boom}, time.Second)

	assert.ErrorIs(t, c.SetBytes("k", []byte("v"), time.Minute), boom)
	assert.Zero(t, l1.Len())

	_, _, err := c.GetBytes("k")
	assert.ErrorIs(t, err, boom)
}
