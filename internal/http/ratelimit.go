package http

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// limiterReset bounds how long per-client limiters are kept.
const limiterReset = time.Hour

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	lastReset time.Time
	now       func() time.Time
}

func newIPLimiter(perSecond float64) *ipLimiter {
	return &ipLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(perSecond),
		burst:     max(int(math.Ceil(perSecond)), 1),
		lastReset: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.lastReset) > limiterReset {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastReset = l.now()
	}
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

// middleware rejects requests over the limit with 429. Health checks are
// never limited.
func (l *ipLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}
			if !l.get(c.RealIP()).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
