package melody

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache keeps ready melodies in memory and collapses concurrent lookups of
// the same song into one upstream request. Processing and unavailable
// results are not cached, so the next session asks again.
type Cache struct {
	upstream Provider
	entries  *lru.Cache[string, Reference]
	group    singleflight.Group
}

// NewCache wraps upstream with an LRU of size songs.
func NewCache(upstream Provider, size int) (*Cache, error) {
	if size < 1 {
		size = 1
	}
	entries, err := lru.New[string, Reference](size)
	if err != nil {
		return nil, err
	}
	return &Cache{upstream: upstream, entries: entries}, nil
}

// Melody implements Provider.
func (c *Cache) Melody(ctx context.Context, songID string) (Reference, error) {
	if ref, ok := c.entries.Get(songID); ok {
		return ref, nil
	}

	v, err, _ := c.group.Do(songID, func() (interface{}, error) {
		ref, err := c.upstream.Melody(ctx, songID)
		if err != nil {
			return Reference{}, err
		}
		if ref.Status == StatusReady {
			c.entries.Add(songID, ref)
		}
		return ref, nil
	})
	if err != nil {
		return Reference{}, err
	}
	return v.(Reference), nil
}

// SaveSyncOffset implements Provider and updates the cached copy on success.
func (c *Cache) SaveSyncOffset(ctx context.Context, songID string, offset float64) error {
	if err := c.upstream.SaveSyncOffset(ctx, songID, offset); err != nil {
		return err
	}
	if ref, ok := c.entries.Peek(songID); ok {
		ref.SyncOffset = offset
		c.entries.Add(songID, ref)
	}
	return nil
}

// Invalidate forgets a cached song.
func (c *Cache) Invalidate(songID string) {
	c.entries.Remove(songID)
}
