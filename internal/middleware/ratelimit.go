package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// idleLimiter is how long a client's limiter is kept after its last request.
const idleLimiter = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per remote host.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewRateLimiter allows perMinute requests a minute per host, with bursts of
// up to perMinute.
func NewRateLimiter(perMinute int, logger logrus.FieldLogger) *RateLimiter {
	perMinute = max(perMinute, 1)
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		logger:  logger,
		now:     time.Now,
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow reports whether host may make a request now.
func (rl *RateLimiter) Allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for h, c := range rl.clients {
		if now.Sub(c.lastSeen) > idleLimiter {
			delete(rl.clients, h)
		}
	}
	c, ok := rl.clients[host]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[host] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := remoteHost(r)
		if !rl.Allow(host) {
			rl.logger.WithFields(logrus.Fields{"remote": host, "path": r.URL.Path}).Warn("rate limited")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":  false,
				"code":     "RATE_LIMITED",
				"response": "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
