package middleware

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"mainq/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CodeRateLimited is returned with 429 responses.
const CodeRateLimited = "RATE_LIMITED"

var errNoLimiterStore = errors.New("rate limiter has no redis client")

// Quota is a fixed-window allowance for one named action.
type Quota struct {
	Name   string
	Max    int
	Window time.Duration
	// Strict rejects requests with 503 when Redis cannot be reached.
	// Otherwise requests pass through.
	Strict bool
}

// Quotas for write actions.
var (
	SignupQuota        = Quota{Name: "signup", Max: 3, Window: 10 * time.Minute}
	LoginQuota         = Quota{Name: "login", Max: 10, Window: 5 * time.Minute}
	VerifyEmailQuota   = Quota{Name: "verify_email", Max: 3, Window: 10 * time.Minute}
	CreateCommentQuota = Quota{Name: "create_comment", Max: 5, Window: time.Minute}
)

// UploadQuota limits uploads of one content kind per hour.
func UploadQuota(kind string) Quota {
	return Quota{Name: "upload_" + kind, Max: 10, Window: time.Hour}
}

func limiterDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

func quotaKey(name, subject string) string {
	return "rl:" + name + ":" + subject
}

// CheckRateLimit counts one hit for subject against q and reports whether it
// is still inside the allowance. Local environments are never limited.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, q Quota, subject string) (bool, error) {
	if limiterDisabled() {
		return true, nil
	}
	if rdb == nil {
		return false, errNoLimiterStore
	}

	key := quotaKey(q.Name, subject)
	hits, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if hits == 1 {
		if err := rdb.Expire(ctx, key, q.Window).Err(); err != nil {
			return false, err
		}
	}
	return hits <= int64(q.Max), nil
}

// retryAfter returns the seconds left in the current window, at least 1.
func retryAfter(ctx context.Context, rdb *redis.Client, q Quota, subject string) int {
	ttl, err := rdb.TTL(ctx, quotaKey(q.Name, subject)).Result()
	if err != nil || ttl <= 0 {
		return int(q.Window.Seconds())
	}
	if secs := int(ttl.Seconds()); secs > 0 {
		return secs
	}
	return 1
}

// limitSubject keys signed-in callers by user and everyone else by IP.
func limitSubject(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(string); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.IP()
}

// RateLimit enforces q on the wrapped route.
func RateLimit(rdb *redis.Client, q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		subject := limitSubject(c)

		allowed, err := CheckRateLimit(ctx, rdb, q, subject)
		if err != nil {
			if !q.Strict {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limiter unavailable, rejecting request",
				"quota", q.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Service temporarily unavailable",
				Code:  models.CodeInternal,
			})
		}
		if allowed {
			return c.Next()
		}

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter(ctx, rdb, q, subject)))
		return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
			Error: "Too many requests, try again later",
			Code:  CodeRateLimited,
		})
	}
}
