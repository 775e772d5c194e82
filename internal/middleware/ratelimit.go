package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/campushub/campushub-api/internal/service"
	"github.com/campushub/campushub-api/pkg/config"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
	"github.com/campushub/campushub-api/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies per-client-IP token buckets. Auth endpoints draw from
// a separate, tighter bucket so credential probing is throttled without
// starving normal traffic from the same address.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	metrics *service.MetricsService

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter constructs a rate limiter from configuration.
func NewRateLimiter(cfg config.RateLimitConfig, metrics *service.MetricsService) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 120
	}
	if cfg.AuthCeiling <= 0 {
		cfg.AuthCeiling = 10
	}
	return &RateLimiter{cfg: cfg, metrics: metrics, clients: make(map[string]*clientLimiter)}
}

// General limits all API traffic per client IP.
func (m *RateLimiter) General() gin.HandlerFunc {
	return m.handler(func(l *clientLimiter) *rate.Limiter { return l.general })
}

// Auth limits credential endpoints per client IP.
func (m *RateLimiter) Auth() gin.HandlerFunc {
	return m.handler(func(l *clientLimiter) *rate.Limiter { return l.auth })
}

func (m *RateLimiter) handler(pick func(*clientLimiter) *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.cfg.Enabled {
			c.Next()
			return
		}
		if !pick(m.limiterFor(c.ClientIP())).Allow() {
			m.metrics.RecordRateLimited()
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *RateLimiter) limiterFor(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		return limiter
	}

	created := &clientLimiter{
		general:  rate.NewLimiter(rate.Every(m.cfg.Window/time.Duration(m.cfg.Ceiling)), m.cfg.Ceiling),
		auth:     rate.NewLimiter(rate.Every(m.cfg.Window/time.Duration(m.cfg.AuthCeiling)), m.cfg.AuthCeiling),
		lastSeen: time.Now(),
	}
	m.clients[clientIP] = created
	m.gcLocked()
	return created
}

func (m *RateLimiter) gcLocked() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
