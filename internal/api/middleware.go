package api

import (
	"bank_ledger/internal/logger"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const CodeRateLimited = "rate_limited"

// limiterIdleTTL is how long a client may stay silent before its bucket is
// dropped. A returning client starts with a full bucket.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters keeps one token bucket per client and sweeps idle ones at
// most once per TTL, on the request path.
type clientLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientLimiter
}

func newClientLimiters(rps float64, burst int, ttl time.Duration, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		rps:       rate.Limit(rps),
		burst:     burst,
		ttl:       ttl,
		now:       now,
		lastSweep: now(),
		clients:   make(map[string]*clientLimiter),
	}
}

func (l *clientLimiters) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		for ip, c := range l.clients {
			if now.Sub(c.lastSeen) >= l.ttl {
				delete(l.clients, ip)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimit gives every client IP its own token bucket and answers 429 once
// it is empty.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return rateLimit(newClientLimiters(rps, burst, limiterIdleTTL, time.Now))
}

func rateLimit(limiters *clientLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if !limiters.allow(client) {
			logger.FromContext(c.Request.Context()).Warn("Rate limit exceeded",
				zap.String("client_ip", client))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
				Success: false,
				Error:   &ErrorBody{Code: CodeRateLimited, Message: "too many requests"},
			})
			return
		}
		c.Next()
	}
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// NewRouter builds the gin engine with recovery, access logging and the
// optional rate limiter in front of the ledger routes.
func NewRouter(h *APIHandler, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log))
	if cfg.RateLimitEnabled {
		r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	h.RegisterRoutes(r)
	return r
}
