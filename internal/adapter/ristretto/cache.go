// Package ristretto implements the frame cache port on dgraph-io/ristretto.
package ristretto

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// averageFrameBytes sizes the admission counters: a rendered map frame is a
// few kilobytes of styled text.
const averageFrameBytes = 4 << 10

// FrameCache holds rendered frames, charging each by its byte length.
type FrameCache struct {
	c   *ristretto.Cache[string, string]
	ttl time.Duration
}

// New creates a cache bounded to maxCostBytes of frame text. Frames expire
// after ttl; zero keeps them until evicted.
func New(maxCostBytes int64, ttl time.Duration) (*FrameCache, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("ristretto: max cost must be positive, got %d", maxCostBytes)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: max(maxCostBytes/averageFrameBytes*10, 100),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &FrameCache{c: c, ttl: ttl}, nil
}

func (f *FrameCache) Frame(key string) (string, bool) {
	return f.c.Get(key)
}

// StoreFrame admits frame asynchronously; an immediate Frame call may miss.
func (f *FrameCache) StoreFrame(key, frame string) {
	f.c.SetWithTTL(key, frame, int64(len(frame)), f.ttl)
}

func (f *FrameCache) Invalidate() {
	f.c.Clear()
}

// HitRatio reports the share of lookups served from the cache.
func (f *FrameCache) HitRatio() float64 {
	return f.c.Metrics.Ratio()
}

// Close stops the cache's background goroutines.
func (f *FrameCache) Close() {
	f.c.Close()
}
