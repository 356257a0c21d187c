package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// RateLimit throttles requests per user, falling back to the caller's
// IP when unauthenticated.
func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{redis: r.redis, limit: r.limit, window: r.window},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			userID := c.Get("user_id")
			if userID != nil {
				return fmt.Sprintf("user:%s", userID), nil
			}
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(429, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// PurchaseGuard is the same limiter for PocketBase routes, keyed on the
// authenticated user when present.
func (r *RateLimiter) PurchaseGuard() func(*core.RequestEvent) error {
	store := &redisStore{redis: r.redis, limit: r.limit, window: r.window}
	return func(e *core.RequestEvent) error {
		identifier := e.RealIP()
		if e.Auth != nil {
			identifier = "user:" + e.Auth.Id
		}
		allowed, _ := store.Allow(identifier)
		if !allowed {
			return apis.NewApiError(429, "Rate limit exceeded. Please try again later.", nil)
		}
		return e.Next()
	}
}

// AntiBotMiddleware rejects obvious scraper traffic before it reaches
// the inventory.
func (r *RateLimiter) AntiBotMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userAgent := c.Request().Header.Get("User-Agent")
			if r.isSuspiciousUserAgent(userAgent) {
				return c.JSON(403, map[string]string{
					"error": "Access denied",
				})
			}

			ip := c.RealIP()
			key := fmt.Sprintf("antibot:%s", ip)

			count, err := r.redis.Incr(context.Background(), key).Result()
			if err == nil {
				if count == 1 {
					r.redis.Expire(context.Background(), key, time.Minute)
				}
				if count > 30 { // Max 30 requests per minute
					return c.JSON(429, map[string]string{
						"error": "Too many requests",
					})
				}
			}

			return next(c)
		}
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}

// redisStore backs echo's rate limiter with a fixed window counter so
// limits hold across instances.
type redisStore struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func (s *redisStore) Allow(identifier string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", identifier)
	ctx := context.Background()

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis being down should not take ticket sales with it.
		return true, nil
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.window)
	}
	return count <= int64(s.limit), nil
}
