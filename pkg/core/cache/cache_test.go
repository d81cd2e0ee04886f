package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCache_HitWithinTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(10*time.Minute, clock.now)

	c.Set("fnet:HGLG11:20", []string{"doc"})
	clock.advance(9 * time.Minute)

	v, ok := c.Get("fnet:HGLG11:20")
	require.True(t, ok)
	assert.Equal(t, []string{"doc"}, v)
}

func TestCache_ExpiryIsLazyAndDeletes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(10*time.Minute, clock.now)

	c.Set("k", 1)
	clock.advance(10 * time.Minute) // boundary counts as expired

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired read should delete the entry")
}

func TestCache_MissWhenNeverSet(t *testing.T) {
	c := New(time.Minute, nil)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCache_SetRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(10*time.Minute, clock.now)

	c.Set("k", "old")
	clock.advance(8 * time.Minute)
	c.Set("k", "new")
	clock.advance(8 * time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}
