package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/domain"
)

// ReportCache caches rendered narratives with TTL to avoid repeated LLM calls
// for the same result (e.g. a reloaded report page).
type ReportCache struct {
	renderer app.ReportRenderer
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedReport
}

type cachedReport struct {
	markdown  string
	expiresAt time.Time
}

func NewReportCache(renderer app.ReportRenderer, ttl time.Duration) *ReportCache {
	return &ReportCache{
		renderer: renderer,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedReport),
	}
}

func (c *ReportCache) Render(ctx context.Context, data domain.ReportData) (string, error) {
	key := app.ReportKey(data)
	if md, ok := c.lookup(key); ok {
		return md, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if md, ok := c.lookup(key); ok {
			return md, nil
		}

		md, err := c.renderer.Render(ctx, data)
		if err != nil {
			// failures are not cached; the next request retries upstream
			return "", err
		}

		c.mu.Lock()
		c.cache[key] = cachedReport{
			markdown:  md,
			expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *ReportCache) lookup(key string) (string, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		return entry.markdown, true
	}
	return "", false
}

func (c *ReportCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
