package handler

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	redisrepo "rfid-bridge/internal/repository/redis"
	"rfid-bridge/internal/util"
)

// RateLimitMiddleware throttles the administrative API per caller IP using
// a fixed one-minute window. When the limiter itself fails the request is
// allowed through: availability over completeness, same policy as the
// resolver.
func RateLimitMiddleware(cache *redisrepo.RateLimitCache, requestsPerMinute int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			count, err := cache.IncrementIPCounter(ip, time.Minute)
			if err != nil {
				util.Warn("Rate limiter unavailable, allowing request",
					zap.String("ip", ip),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > requestsPerMinute {
				logger.Warn("Rate limit exceeded",
					zap.String("ip", ip),
					zap.Int("count", count),
					zap.Int("limit", requestsPerMinute))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"success":false,"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// middleware.RealIP has already rewritten RemoteAddr when the request
	// came through a proxy.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
