package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// KeyFunc picks the identity a request is counted against. An empty key
// skips limiting for that request.
type KeyFunc func(r *http.Request) string

// ByRemoteIP counts requests per client address.
func ByRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ByFormValue counts requests per value of a form field, such as the
// caller's phone number on USSD callbacks.
func ByFormValue(field string) KeyFunc {
	return func(r *http.Request) string {
		return r.FormValue(field)
	}
}

type RateLimitOption func(*RateLimiter)

// WithLimitedHandler replaces the default 429 response.
func WithLimitedHandler(h http.HandlerFunc) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.onLimited = h
	}
}

func WithRateLimitLogger(l zerolog.Logger) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.log = l
	}
}

// RateLimiter is a fixed-window counter kept in Redis so every replica shares
// the same budget. Without Redis, or when Redis fails, requests pass.
type RateLimiter struct {
	redis     *redis.Client
	prefix    string
	limit     int64
	window    time.Duration
	key       KeyFunc
	onLimited http.HandlerFunc
	log       zerolog.Logger
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration, key KeyFunc, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		redis:  rdb,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		key:    key,
		onLimited: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		id := rl.key(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := "ratelimit:" + rl.prefix + ":" + id
		count, err := rl.redis.Incr(r.Context(), key).Result()
		if err != nil {
			rl.log.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			if err := rl.redis.Expire(r.Context(), key, rl.window).Err(); err != nil {
				rl.log.Warn().Err(err).Str("key", key).Msg("rate limit expiry not set")
			}
		}

		if count > rl.limit {
			rl.log.Info().Str("key", key).Int64("count", count).Msg("rate limited")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			rl.onLimited(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
