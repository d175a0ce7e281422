// Package signedurl keeps recently issued signed delivery URLs in memory so
// repeated requests for the same object key do not re-sign every time.
package signedurl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultSignTTL  = 24 * time.Hour
)

// Signer issues a signed URL for an object key valid for ttl.
type Signer interface {
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Observer receives cache hit/miss notifications.
type Observer interface {
	SignedURLCacheHit()
	SignedURLCacheMiss()
}

// Entry is one cached signature.
type Entry struct {
	ObjectKey string
	URL       string
	IssuedAt  time.Time
}

// Options configures a Cache. Zero values fall back to the defaults.
type Options struct {
	CacheTTL time.Duration
	SignTTL  time.Duration
	Now      func() time.Time
	Observer Observer
}

// Cache fronts a Signer with a short-lived map of issued URLs. Entries are
// served only while younger than CacheTTL, even though the signature itself
// stays valid for SignTTL.
//
// Concurrent misses on the same key may each call the signer; the last store
// wins and every returned URL is valid.
type Cache struct {
	signer   Signer
	cacheTTL time.Duration
	signTTL  time.Duration
	now      func() time.Time
	observer Observer
	entries  sync.Map // map[string]Entry
}

func New(signer Signer, opts Options) (*Cache, error) {
	if signer == nil {
		return nil, errors.New("signedurl: signer is required")
	}
	c := &Cache{
		signer:   signer,
		cacheTTL: opts.CacheTTL,
		signTTL:  opts.SignTTL,
		now:      opts.Now,
		observer: opts.Observer,
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = DefaultCacheTTL
	}
	if c.signTTL <= 0 {
		c.signTTL = DefaultSignTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Resolve returns a signed URL for objectKey, signing only on a miss or once
// the cached entry is older than the cache TTL. Signing failures are not cached.
func (c *Cache) Resolve(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("signedurl: object key is required")
	}
	now := c.now()
	if v, ok := c.entries.Load(objectKey); ok {
		entry := v.(Entry)
		if now.Sub(entry.IssuedAt) < c.cacheTTL {
			c.hit()
			return entry.URL, nil
		}
		c.entries.CompareAndDelete(objectKey, entry)
	}
	c.miss()
	url, err := c.signer.Sign(ctx, objectKey, c.signTTL)
	if err != nil {
		return "", fmt.Errorf("signedurl: sign %s: %w", objectKey, err)
	}
	c.entries.Store(objectKey, Entry{ObjectKey: objectKey, URL: url, IssuedAt: now})
	return url, nil
}

// Sweep drops every entry older than the cache TTL.
func (c *Cache) Sweep() {
	now := c.now()
	c.entries.Range(func(k, v any) bool {
		if entry := v.(Entry); now.Sub(entry.IssuedAt) >= c.cacheTTL {
			c.entries.CompareAndDelete(k, entry)
		}
		return true
	})
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.cacheTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len reports the number of cached entries, expired or not.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Peek returns the cached entry for objectKey regardless of age.
func (c *Cache) Peek(objectKey string) (Entry, bool) {
	v, ok := c.entries.Load(objectKey)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

func (c *Cache) hit() {
	if c.observer != nil {
		c.observer.SignedURLCacheHit()
	}
}

func (c *Cache) miss() {
	if c.observer != nil {
		c.observer.SignedURLCacheMiss()
	}
}
