package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })

	store.Set(UTMSource, "ads", time.Hour)
	v, ok := store.Get(UTMSource)
	assert.True(t, ok)
	assert.Equal(t, "ads", v)

	now = now.Add(time.Hour)
	_, ok = store.Get(UTMSource)
	assert.False(t, ok, "value must expire at its TTL")
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(nil)
	store.Set(GCLID, "g", DefaultTTL)
	store.Set(LandingPage, "https://example.com/", DefaultTTL)

	store.Clear(GCLID)

	_, ok := store.Get(GCLID)
	assert.False(t, ok)
	v, ok := store.Get(LandingPage)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/", v)
}

func TestKeySets(t *testing.T) {
	assert.Len(t, QueryKeys(), 13)
	assert.Len(t, PersistedKeys(), 17)
	assert.Len(t, AllKeys(), 18)
	assert.NotContains(t, PersistedKeys(), CurrentURL)

	k, ok := ParseKey("msclkid")
	assert.True(t, ok)
	assert.Equal(t, MSCLKID, k)
	_, ok = ParseKey("utm_id")
	assert.False(t, ok)

	assert.True(t, LandingPage.FirstTouch())
	assert.True(t, Referrer.FirstTouch())
	assert.False(t, UTMSource.FirstTouch())
}
