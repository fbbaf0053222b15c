package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/domain"
)

// ReportCache caches rendered narratives in Redis and falls back to the renderer on a miss.
// Narratives are stored as: SET quiz:report:{fingerprint} {markdown} EX ttl
type ReportCache struct {
	client   *redis.Client
	renderer app.ReportRenderer
	ttl      time.Duration
	sf       singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewReportCache(client *redis.Client, renderer app.ReportRenderer, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client:   client,
		renderer: renderer,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ReportCache) Render(ctx context.Context, data domain.ReportData) (string, error) {
	key := c.key(app.ReportKey(data))

	if md, err := c.client.Get(ctx, key).Result(); err == nil && md != "" {
		return md, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if md, err := c.client.Get(ctx, key).Result(); err == nil && md != "" {
			return md, nil
		}

		md, err := c.renderer.Render(ctx, data)
		if err != nil {
			return "", err
		}
		_ = c.client.Set(ctx, key, md, c.ttlWithJitter()).Err()
		return md, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *ReportCache) key(fingerprint string) string {
	return "quiz:report:" + fingerprint
}

func (c *ReportCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
