package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/config"
	"github.com/iliyamo/room-reservation/internal/utils"
)

// tokenBucket refills ARGV[3] tokens every ARGV[4] ms up to ARGV[2] and
// takes one.  It returns {allowed, tokens left, ms until the next refill}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
	tokens = capacity
	last = now_ms
end

local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	last = last + steps * interval_ms
end

local allowed = 0
local wait_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	wait_ms = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', key, ttl)
return { allowed, tokens, wait_ms }
`)

// decision is the outcome of one bucket draw.
type decision struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

type limiter struct {
	cfg    config.RateLimitConfig
	rdb    redis.Scripter
	secret string
	now    func() time.Time
}

// NewTokenBucket limits requests per key with a token bucket kept in Redis.
// It runs ahead of route-level authentication, so the caller is read from
// the bearer token with jwtSecret; requests without a valid token count as
// "guest".  Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, jwtSecret string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return newLimiter(cfg, rdb, jwtSecret, time.Now).middleware
}

func newLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, secret string, now func() time.Time) *limiter {
	return &limiter{cfg: cfg, rdb: rdb, secret: secret, now: now}
}

func (l *limiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := l.key(c)
		d, err := l.take(c.Request().Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("ratelimit: redis unavailable, allowing request")
			return next(c)
		}

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
		if l.cfg.Debug {
			h.Set("X-RateLimit-Key", key)
		}
		if d.allowed {
			return next(c)
		}

		secs := int((d.wait + time.Second - 1) / time.Second)
		h.Set("Retry-After", strconv.Itoa(secs))
		log.Debug().Str("key", key).Dur("wait", d.wait).Msg("ratelimit: blocked")
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many requests",
			"retry_after": secs,
		})
	}
}

func (l *limiter) take(ctx context.Context, key string) (decision, error) {
	vals, err := tokenBucket.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(vals) != 3 {
		return decision{}, fmt.Errorf("unexpected script result %v", vals)
	}
	return decision{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// caller identifies the requester for the key.  Claims already placed by
// JWTAuth win; otherwise the bearer token is verified here.
func (l *limiter) caller(c echo.Context) string {
	if id := userID(c); id != "guest" {
		return id
	}
	raw := BearerToken(c)
	if raw == "" || l.secret == "" {
		return "guest"
	}
	claims, err := utils.ParseAccessToken(l.secret, raw)
	if err != nil || claims.UserID == 0 {
		return "guest"
	}
	return strconv.FormatUint(claims.UserID, 10)
}

// key joins the parts named by the key strategy, e.g. "ip_user_route".
// Unknown strategies fall back to ip_user_route.
func (l *limiter) key(c echo.Context) string {
	parts := strings.Split(strings.ToLower(l.cfg.KeyStrategy), "_")
	for _, p := range parts {
		if p != "ip" && p != "user" && p != "route" {
			parts = []string{"ip", "user", "route"}
			break
		}
	}

	out := []string{l.cfg.Prefix}
	for _, p := range parts {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			out = append(out, "ip", ip)
		case "user":
			out = append(out, "user", l.caller(c))
		case "route":
			out = append(out, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(out, ":")
}
