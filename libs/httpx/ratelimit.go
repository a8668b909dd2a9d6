package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
	Limit() int
}

type RateLimitOptions struct {
	Logger *slog.Logger
	// FailOpen lets requests through when the limiter backend errors.
	FailOpen bool
	// Exempt paths are never limited. Entries ending in "/" match as prefixes.
	Exempt []string
}

// RateLimit limits requests per client address.
func RateLimit(l Limiter, opts RateLimitOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path, opts.Exempt) {
				next.ServeHTTP(w, r)
				return
			}
			d, err := l.Allow(r.Context(), clientKey(r), time.Now())
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.Warn("rate limiter error", "err", err, "request_id", RequestIDFromContext(r.Context()))
				}
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "rate_limiter_down", nil)
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(d.ResetIn.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func exempt(path string, rules []string) bool {
	for _, rule := range rules {
		if rule == path || (strings.HasSuffix(rule, "/") && strings.HasPrefix(path, rule)) {
			return true
		}
	}
	return false
}

// RateLimiter is an in-process fixed-window limiter for single instance
// deployments and tests.
type RateLimiter struct {
	limit     int
	window    time.Duration
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, every time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if every <= 0 {
		every = time.Minute
	}
	return &RateLimiter{limit: limit, window: every, windows: map[string]*window{}}
}

func (rl *RateLimiter) Limit() int { return rl.limit }

func (rl *RateLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.window {
		for k, w := range rl.windows {
			if !now.Before(w.resetAt) {
				delete(rl.windows, k)
			}
		}
		rl.lastSweep = now
	}

	w := rl.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.window)}
		rl.windows[key] = w
	}
	if w.count >= rl.limit {
		return Decision{ResetIn: w.resetAt.Sub(now)}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: rl.limit - w.count, ResetIn: w.resetAt.Sub(now)}, nil
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
