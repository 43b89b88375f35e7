package graph

import (
	"context"
	"sync"
	"time"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/models"
)

// ProfileSource yields channel profiles for a viewer/handle pair.
type ProfileSource interface {
	ChannelProfile(ctx context.Context, viewerID, handle string) (models.ChannelProfile, error)
}

type cacheEntry struct {
	profile models.ChannelProfile
	expires time.Time
}

// CachingProfiles wraps a ProfileSource with a TTL-based in-memory cache.
// Entries are keyed per viewer so the isSubscribed flag is never shared
// between callers.
type CachingProfiles struct {
	base ProfileSource
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingProfiles returns a ProfileSource that caches lookups for the
// provided TTL.
func NewCachingProfiles(base ProfileSource, ttl time.Duration) *CachingProfiles {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingProfiles{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// ChannelProfile returns a cached profile when fresh, otherwise it delegates
// to the underlying source and stores the result.
func (c *CachingProfiles) ChannelProfile(ctx context.Context, viewerID, handle string) (models.ChannelProfile, error) {
	key := cacheKey(viewerID, handle)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.profile, nil
	}

	profile, err := c.base.ChannelProfile(ctx, viewerID, handle)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	c.mu.Lock()
	c.items[key] = cacheEntry{profile: profile, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return profile, nil
}

// Invalidate drops the viewer's cached entry for a channel so the next read
// reflects a just-changed subscription edge instead of waiting out the TTL.
func (c *CachingProfiles) Invalidate(viewerID, handle string) {
	c.mu.Lock()
	delete(c.items, cacheKey(viewerID, handle))
	c.mu.Unlock()
}

// cacheKey normalizes the handle so differently cased requests share an entry.
func cacheKey(viewerID, handle string) string {
	return viewerID + "\x00" + accounts.NormalizeHandle(handle)
}
