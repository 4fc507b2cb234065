package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_TTL(t *testing.T) {
	c := NewCache()
	now := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.Get("today", time.Minute)
	assert.False(t, ok)

	c.Set("today", 42)
	v, ok := c.Get("today", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(59 * time.Second)
	_, ok = c.Get("today", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("today", time.Minute)
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache()
	c.Set("today", 1)
	c.Invalidate("today")
	_, ok := c.Get("today", time.Hour)
	assert.False(t, ok)
}

func TestCache_PerLookupTTL(t *testing.T) {
	c := NewCache()
	now := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("instant", "snap")
	now = now.Add(10 * time.Second)

	_, ok := c.Get("instant", 4*time.Second)
	assert.False(t, ok)
	_, ok = c.Get("instant", time.Minute)
	assert.True(t, ok)
}
