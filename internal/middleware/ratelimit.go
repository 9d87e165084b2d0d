package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/authflow/internal/config"
	"github.com/iliyamo/authflow/internal/logging"
)

// attemptScript spends one attempt from the bucket at KEYS[1].  The bucket
// starts full and earns one attempt back every refill_ms.  It returns
// {allowed, attempts_left, retry_after_ms}.
var attemptScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local max_attempts = tonumber(ARGV[2])
local refill_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'left', 'since_ms')
local left = tonumber(state[1])
local since = tonumber(state[2])
if left == nil or since == nil then
  left = max_attempts
  since = now_ms
end

local earned = math.floor(math.max(0, now_ms - since) / refill_ms)
if earned > 0 then
  left = math.min(max_attempts, left + earned)
  since = since + earned * refill_ms
end

local allowed = 0
local retry_ms = 0
if left > 0 then
  allowed = 1
  left = left - 1
else
  retry_ms = math.max(0, refill_ms - (now_ms - since))
end

redis.call('HSET', key, 'left', left, 'since_ms', since)
redis.call('PEXPIRE', key, ttl_ms)
return { allowed, left, retry_ms }
`)

// maxEmailPeek bounds how much of a request body is read to find the
// submitted email.
const maxEmailPeek = 64 << 10

// Attempt is the outcome of spending one attempt.
type Attempt struct {
	Allowed    bool
	Left       int64
	RetryAfter time.Duration
}

// Throttle limits register, login and resend attempts with a token bucket
// kept in Redis.
type Throttle struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	log logging.Logger
	now func() time.Time
}

func NewThrottle(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) *Throttle {
	return &Throttle{cfg: cfg, rdb: rdb, log: log.With("component", "throttle"), now: time.Now}
}

// Hit spends one attempt for key.
func (t *Throttle) Hit(ctx context.Context, key string) (Attempt, error) {
	refill := t.cfg.RefillEvery()
	if refill <= 0 {
		refill = time.Millisecond
	}
	res, err := attemptScript.Run(ctx, t.rdb, []string{key},
		t.now().UnixMilli(),
		t.cfg.MaxAttempts,
		refill.Milliseconds(),
		(t.cfg.Decay + refill).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Attempt{}, err
	}
	if len(res) != 3 {
		return Attempt{}, fmt.Errorf("throttle: unexpected script result %v", res)
	}
	return Attempt{
		Allowed:    res[0] == 1,
		Left:       res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Key names the bucket a request draws from: the route plus, by default,
// the submitted email and client address.
func (t *Throttle) Key(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	subject := ip
	if t.cfg.KeyBy == config.KeyByEmailIP {
		if email := submittedEmail(c.Request()); email != "" {
			subject = email + "|" + ip
		}
	}
	return strings.Join([]string{t.cfg.Prefix, c.Path(), subject}, ":")
}

// Middleware rejects requests whose bucket is empty with 429.  It is a
// no-op when throttling is disabled or Redis is unavailable, and lets the
// request through when Redis fails mid-flight.
func (t *Throttle) Middleware() echo.MiddlewareFunc {
	if t == nil || !t.cfg.Enabled || t.rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := t.Key(c)
			a, err := t.Hit(ctx, key)
			if err != nil {
				t.log.Warn(ctx, "throttle unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(t.cfg.MaxAttempts))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(a.Left, 10))
			if a.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(a.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			t.log.Info(ctx, "too many attempts", "key", key, "retry_after", secs)
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"message":     "Too Many Attempts.",
				"retry_after": secs,
			})
		}
	}
}

// submittedEmail reads the "email" field of a JSON body and puts the body
// back for the handler.
func submittedEmail(r *http.Request) string {
	if r.Body == nil || !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxEmailPeek))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if err != nil {
		return ""
	}
	var in struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &in) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(in.Email))
}
