package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New[string](time.Minute)

	c.Set("greeting", "hello")
	got, ok := c.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestGet_Missing(t *testing.T) {
	c := New[int](time.Minute)

	got, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Zero(t, got)
}

func TestGet_Expired(t *testing.T) {
	c := New[string](10 * time.Millisecond)

	c.Set("short", "lived")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestGet_ExpiresAtExactTTL(t *testing.T) {
	c := New[string](0)

	c.Set("instant", "gone")

	_, ok := c.Get("instant")
	assert.False(t, ok, "entry whose expiry instant has arrived is absent")
}

func TestSet_RefreshesTTL(t *testing.T) {
	c := New[string](30 * time.Millisecond)

	c.Set("k", "v1")
	time.Sleep(20 * time.Millisecond)
	c.Set("k", "v2")
	time.Sleep(20 * time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok, "rewrite restarts the TTL clock")
	assert.Equal(t, "v2", got)
}

func TestDelete(t *testing.T) {
	c := New[string](time.Minute)

	c.Set("k", "v")
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"), "second delete finds nothing")
	assert.False(t, c.Has("k"))
}

func TestClear(t *testing.T) {
	c := New[int](time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestKeys(t *testing.T) {
	c := New[int](time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestCleanup(t *testing.T) {
	c := New[int](20 * time.Millisecond)

	c.Set("old", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("fresh", 2)

	removed := c.Cleanup()
	assert.Equal(t, 1, removed)
	assert.True(t, c.Has("fresh"))
	assert.Equal(t, 1, c.Len())
}
