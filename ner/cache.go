package ner

import (
	"context"
	"sync"
	"time"
)

// CacheStats counts cache effectiveness over a run.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

type cacheEntry struct {
	result    *Result
	timestamp time.Time
}

// CachedRecognizer memoizes recognizer results by input text. Herbarium
// dumps repeat the same collector strings millions of times; one model
// call per distinct string is enough.
type CachedRecognizer struct {
	inner Recognizer
	ttl   time.Duration
	data  map[string]*cacheEntry
	mutex sync.RWMutex
	stats CacheStats
}

// NewCachedRecognizer wraps inner with a TTL cache. ttl <= 0 caches for the
// process lifetime.
func NewCachedRecognizer(inner Recognizer, ttl time.Duration) *CachedRecognizer {
	return &CachedRecognizer{
		inner: inner,
		ttl:   ttl,
		data:  make(map[string]*cacheEntry),
	}
}

// Name identifies the wrapped implementation.
func (c *CachedRecognizer) Name() string {
	return c.inner.Name() + "+cache"
}

// IsAvailable defers to the wrapped recognizer.
func (c *CachedRecognizer) IsAvailable() bool {
	return c.inner.IsAvailable()
}

// Recognize returns a cached result when fresh, otherwise consults the
// wrapped recognizer. Errors are not cached.
func (c *CachedRecognizer) Recognize(ctx context.Context, text string, ruleConfidence float64) (*Result, error) {
	c.mutex.RLock()
	entry, ok := c.data[text]
	c.mutex.RUnlock()

	if ok && (c.ttl <= 0 || time.Since(entry.timestamp) <= c.ttl) {
		c.mutex.Lock()
		c.stats.Hits++
		c.mutex.Unlock()
		return entry.result, nil
	}

	result, err := c.inner.Recognize(ctx, text, ruleConfidence)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	c.stats.Misses++
	c.data[text] = &cacheEntry{result: result, timestamp: time.Now()}
	c.stats.Size = len(c.data)
	c.mutex.Unlock()

	return result, nil
}

// Stats returns a snapshot of the cache counters.
func (c *CachedRecognizer) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}
