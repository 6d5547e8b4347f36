package proxyserver

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/sudip358/claude-route/pkg/config"
)

// limiters caches one token-bucket limiter per configured backend name, so
// a reload that leaves a provider's rate limit unchanged keeps its bucket
// (and whatever burst it has already spent) instead of resetting it.
type limiters struct {
	mu    sync.Mutex
	byKey map[string]*rate.Limiter
}

func newLimiters() *limiters {
	return &limiters{byKey: make(map[string]*rate.Limiter)}
}

// forBackend returns the limiter configured for name, or nil when the
// backend sets no RateLimitRPS (unlimited).
func (l *limiters) forBackend(name string, b config.BackendConfig) *rate.Limiter {
	if b.RateLimitRPS <= 0 {
		return nil
	}

	burst := b.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.byKey[name]; ok && lim.Limit() == rate.Limit(b.RateLimitRPS) && lim.Burst() == burst {
		return lim
	}

	lim := rate.NewLimiter(rate.Limit(b.RateLimitRPS), burst)
	l.byKey[name] = lim
	return lim
}
