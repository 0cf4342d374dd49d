package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/pkg/errcode"
	"github.com/xxxsen/advisor/internal/pkg/response"
)

type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// RateLimit enforces one request per window per tenant+user pair. Meant for
// the expensive query path, not the read endpoints.
func RateLimit(window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		window: window,
		last:   make(map[string]time.Time),
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.window <= 0 {
		c.Next()
		return
	}
	key := c.GetString(ContextTenantIDKey) + "/" + c.GetString(ContextUserIDKey)

	l.mu.Lock()
	now := time.Now()
	last, ok := l.last[key]
	if ok && now.Sub(last) < l.window {
		l.mu.Unlock()
		response.Error(c, errcode.ErrTooMany, "too many requests")
		c.Abort()
		return
	}
	l.last[key] = now
	if len(l.last) > 10000 {
		for k, t := range l.last {
			if now.Sub(t) >= l.window {
				delete(l.last, k)
			}
		}
	}
	l.mu.Unlock()
	c.Next()
}
