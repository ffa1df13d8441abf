package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Allower is the seam rate limit backends implement.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config derives the limit key and thresholds for a route.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler applies a rate limit ahead of the wrapped handler. Backend errors
// fail open: a broken Redis must not take checkout down with it.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		writeLimitHeaders(w, h.Config.Max, remaining, resetAt)
		if !allowed {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeLimitHeaders(w http.ResponseWriter, max, remaining int, resetAt time.Time) {
	if max < 0 {
		max = 0
	}
	hdr := w.Header()
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(max))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	if retry := int(time.Until(resetAt).Seconds()); retry > 0 {
		hdr.Set("Retry-After", strconv.Itoa(retry))
	} else {
		hdr.Set("Retry-After", "0")
	}
}
