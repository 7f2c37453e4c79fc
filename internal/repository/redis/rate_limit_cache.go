package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rfid-bridge/internal/client"
	"rfid-bridge/internal/util"
)

const ipRateLimitPrefix = "ip_rate_limit:"

// RateLimitCache implements fixed-window counters backed by Redis, used to
// throttle the administrative API per caller IP.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

// IncrementIPCounter bumps the caller's window counter, refreshing its TTL,
// and returns the new count.
func (c *RateLimitCache) IncrementIPCounter(ipAddress string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := ipRateLimitPrefix + ipAddress

	count, err := c.client.IncrWithExpire(ctx, key, ttl)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("ip", ipAddress),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return int(count), nil
}
