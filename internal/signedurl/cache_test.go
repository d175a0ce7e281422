package signedurl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSigner struct {
	calls atomic.Int32
	ttls  []time.Duration
	mu    sync.Mutex
	err   error
}

func (s *countingSigner) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.ttls = append(s.ttls, ttl)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://signed.example/%s?sig=%d", key, n), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	hits, misses atomic.Int32
}

func (o *countingObserver) SignedURLCacheHit()  { o.hits.Add(1) }
func (o *countingObserver) SignedURLCacheMiss() { o.misses.Add(1) }

func newTestCache(t *testing.T, signer Signer) (*Cache, *fakeClock, *countingObserver) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	obs := &countingObserver{}
	c, err := New(signer, Options{CacheTTL: 5 * time.Minute, SignTTL: 24 * time.Hour, Now: clock.Now, Observer: obs})
	require.NoError(t, err)
	return c, clock, obs
}

func TestResolveTwiceWithinTTLSignsOnce(t *testing.T) {
	signer := &countingSigner{}
	c, clock, obs := newTestCache(t, signer)
	ctx := context.Background()

	first, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)
	clock.Advance(4*time.Minute + 59*time.Second)
	second, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, signer.calls.Load())
	assert.Equal(t, []time.Duration{24 * time.Hour}, signer.ttls)
	assert.EqualValues(t, 1, obs.hits.Load())
	assert.EqualValues(t, 1, obs.misses.Load())
}

func TestResolveResignsAfterCacheTTL(t *testing.T) {
	signer := &countingSigner{}
	c, clock, _ := newTestCache(t, signer)
	ctx := context.Background()

	first, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	second, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, signer.calls.Load())
	entry, ok := c.Peek("designs/asset-1")
	require.True(t, ok)
	assert.Equal(t, second, entry.URL)
	assert.Equal(t, clock.Now(), entry.IssuedAt)
}

func TestResolveKeysAreIndependent(t *testing.T) {
	signer := &countingSigner{}
	c, _, _ := newTestCache(t, signer)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "designs/a")
	require.NoError(t, err)
	_, err = c.Resolve(ctx, "designs/b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, signer.calls.Load())
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	signer := &countingSigner{err: errors.New("presign failed")}
	c, _, _ := newTestCache(t, signer)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "designs/asset-1")
	require.Error(t, err)
	_, ok := c.Peek("designs/asset-1")
	assert.False(t, ok)

	signer.err = nil
	url, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.EqualValues(t, 2, signer.calls.Load())
}

func TestResolveConcurrentMissesAreAllValid(t *testing.T) {
	signer := &countingSigner{}
	c, _, _ := newTestCache(t, signer)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url, err := c.Resolve(ctx, "designs/asset-1")
			assert.NoError(t, err)
			results[i] = url
		}(i)
	}
	wg.Wait()

	calls := signer.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(1))
	assert.LessOrEqual(t, calls, int32(len(results)))
	for _, url := range results {
		assert.Contains(t, url, "https://signed.example/designs/asset-1")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(&countingSigner{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTL, c.cacheTTL)
	assert.Equal(t, DefaultSignTTL, c.signTTL)

	_, err = New(nil, Options{})
	assert.Error(t, err)
}

func TestResolveRequiresKey(t *testing.T) {
	c, _, _ := newTestCache(t, &countingSigner{})
	_, err := c.Resolve(context.Background(), "")
	assert.Error(t, err)
}

func TestSweepEvictsExpiredEntries(t *testing.T) {
	signer := &countingSigner{}
	c, clock, _ := newTestCache(t, signer)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		_, err := c.Resolve(ctx, fmt.Sprintf("designs/asset-%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 200, c.Len())

	clock.Advance(5*time.Minute + time.Second)
	_, err := c.Resolve(ctx, "designs/fresh")
	require.NoError(t, err)
	c.Sweep()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek("designs/asset-0")
	assert.False(t, ok)
	_, ok = c.Peek("designs/fresh")
	assert.True(t, ok)
}

func TestResolveDropsExpiredEntryWhenResignFails(t *testing.T) {
	signer := &countingSigner{}
	c, clock, _ := newTestCache(t, signer)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "designs/asset-1")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	signer.err = errors.New("signer down")
	_, err = c.Resolve(ctx, "designs/asset-1")
	require.Error(t, err)

	_, ok := c.Peek("designs/asset-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	signer := &countingSigner{}
	c, clock, _ := newTestCache(t, signer)
	_, err := c.Resolve(context.Background(), "designs/asset-1")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
