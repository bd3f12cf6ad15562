package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RateLimit throttles requests to rps per second with the given burst.
// rps <= 0 disables the limiter.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return func(next Generator) Generator {
		return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

func (r *rateLimited) Name() string { return r.next.Name() }

func (r *rateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "wait for rate limiter")
	}
	return r.next.Generate(ctx, req)
}

// Cache memoizes successful responses for identical requests, keeping at most
// size entries. size <= 0 disables the cache.
func Cache(size int) Middleware {
	if size <= 0 {
		return nil
	}
	return func(next Generator) Generator {
		entries, err := lru.New[string, string](size)
		if err != nil {
			// lru.New only fails for non-positive sizes.
			return next
		}
		return &cached{next: next, entries: entries}
	}
}

type cached struct {
	next    Generator
	entries *lru.Cache[string, string]
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Generate(ctx context.Context, req Request) (string, error) {
	key := requestKey(req)
	if text, ok := c.entries.Get(key); ok {
		return text, nil
	}
	text, err := c.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	c.entries.Add(key, text)
	return text, nil
}

func requestKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{req.Model, req.System, req.User} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
