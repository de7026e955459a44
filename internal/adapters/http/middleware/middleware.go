package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"mime"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/csrf"
)

// RateLimiter is a token bucket per caller. A caller is the actor ID when
// Identity has run, otherwise the client host.
// Idle buckets are swept from Allow, so the limiter owns no goroutine.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      int           // tokens per interval
	interval  time.Duration // refill interval
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	tokens int
	// refilled is when the bucket was last credited. It advances by whole
	// intervals only, so partial intervals carry over to the next request.
	refilled time.Time
	lastSeen time.Time
}

const (
	idleBucketTTL = 5 * time.Minute // how long an untouched bucket is kept
	sweepInterval = time.Minute
)

// NewRateLimiter creates a limiter allowing rate requests per interval.
// PRE: rate > 0, interval > 0
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		now:      time.Now,
	}
}

// Sweep drops buckets idle for longer than idleBucketTTL.
// POST: Returns the number of buckets removed
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.sweepLocked(rl.now())
}

func (rl *RateLimiter) sweepLocked(now time.Time) int {
	rl.lastSweep = now
	cutoff := now.Add(-idleBucketTTL)
	removed := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Allow takes one token from key's bucket.
// PRE: key is non-empty
// POST: Returns false once the bucket is empty until the next refill
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweepLocked(now)
	}

	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &bucket{tokens: rl.rate - 1, refilled: now, lastSeen: now}
		return true
	}
	b.lastSeen = now

	if n := now.Sub(b.refilled) / rl.interval; n > 0 {
		b.tokens = min(rl.rate, b.tokens+int(n)*rl.rate)
		b.refilled = b.refilled.Add(n * rl.interval)
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// retryAfter is the Retry-After header value in whole seconds.
func (rl *RateLimiter) retryAfter() string {
	return strconv.Itoa(max(1, int(math.Ceil(rl.interval.Seconds()))))
}

// callerKey identifies the caller for rate limiting.
func callerKey(r *http.Request) string {
	if a, ok := GetActorFromContext(r.Context()); ok && a.ID != "" {
		return "actor:" + a.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit returns middleware that refuses callers over their budget with 429.
// Place it inside Identity so authenticated callers are limited per actor.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !limiter.Allow(key) {
				slog.Warn("rate_limit_exceeded", "caller", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", limiter.retryAfter())
				writeRejection(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeRejection writes the JSON error body shared with the API handlers.
func writeRejection(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}

// SecurityHeaders sets the response headers for a JSON-only API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		// Attendance and audit data must not be cached by intermediaries
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// isJSON reports whether the request body is declared as exactly application/json.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// CSRF returns middleware that protects cookie-carrying form posts.
// PRE: authKey is 32 bytes
// Requests declared as application/json skip the check: browsers cannot send
// them cross-origin without a preflight.
func CSRF(authKey []byte, secure bool, trustedOrigins ...string) func(http.Handler) http.Handler {
	protect := csrf.Protect(
		authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("csrf_rejected", "method", r.Method, "path", r.URL.Path, "reason", csrf.FailureReason(r))
			writeRejection(w, http.StatusForbidden, "csrf_rejected", "missing or invalid csrf token")
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isJSON(r) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h so that the last middleware listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
