package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"escritos/internal/handlers"
	u "escritos/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"
)

const apiKeyLocal = "api_key"

var (
	// rateLimitStore backs every limiter; RegisterMiddleware replaces it.
	rateLimitStore fiber.Storage

	tokenLimiters = limiterCache{byLimit: map[int]fiber.Handler{}}
)

// limiterCache holds one sliding-window limiter per distinct token limit, so
// tokens sharing a limit share a handler but never a counter.
type limiterCache struct {
	sync.RWMutex
	byLimit map[int]fiber.Handler
}

func (lc *limiterCache) get(limit int) fiber.Handler {
	lc.RLock()
	h, ok := lc.byLimit[limit]
	lc.RUnlock()
	if ok {
		return h
	}

	lc.Lock()
	defer lc.Unlock()
	if h, ok := lc.byLimit[limit]; ok {
		return h
	}
	h = newLimiter("token", limit, u.GetConfig().RateLimiter.Interval, apiKey)
	lc.byLimit[limit] = h
	return h
}

func (lc *limiterCache) reset() {
	lc.Lock()
	lc.byLimit = map[int]fiber.Handler{}
	lc.Unlock()
}

// apiKey is the X-API-Key accepted by keyauth, empty for anonymous requests.
func apiKey(c *fiber.Ctx) string {
	key, _ := c.Locals(apiKeyLocal).(string)
	return key
}

// clientKey identifies an anonymous client by address and user agent.
func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

func newLimiter(kind string, limit int, window time.Duration, key func(*fiber.Ctx) string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rateLimitStore,
		KeyGenerator:      key,
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", kind, key(c), "path", c.Path())
			return handlers.SendError(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
}

// tokenRateLimit applies the per-token limit from the token file. Anonymous
// requests and tokens with limit 0 pass through.
func tokenRateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := apiKey(c)
		if key == "" {
			return c.Next()
		}
		limit := u.GetRateLimit(key)
		if limit == 0 {
			return c.Next()
		}
		return tokenLimiters.get(limit)(c)
	}
}

// clientRateLimit limits anonymous clients, which covers the browser form.
// Authenticated requests are left to tokenRateLimit.
func clientRateLimit(cfg u.Config) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	limit := newLimiter("client", cfg.RateLimiter.UserLimit, cfg.RateLimiter.Interval, clientKey)
	return func(c *fiber.Ctx) error {
		if apiKey(c) != "" {
			return c.Next()
		}
		return limit(c)
	}
}

func newKeyAuth() fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			if !u.TokensReady() {
				return false, u.ErrTokenStoreNotReady
			}
			if !u.ValidateToken(key) {
				return false, u.ErrInvalidAPIKey
			}
			return true, nil
		},
		// The form is public; only requests that present a key are checked.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: keyAuthFailed,
	})
}

// keyAuthFailed can be called with a nil error by keyauth.
func keyAuthFailed(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	switch {
	case err == nil:
		err = fiber.ErrUnauthorized
	case errors.Is(err, u.ErrTokenStoreNotReady):
		status = fiber.StatusServiceUnavailable
	}
	u.Warn("API key rejected", "path", c.Path(), "status", status)
	return handlers.SendError(c, status, err.Error())
}

func logRequest(c *fiber.Ctx) error {
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = c.GetRespHeader(fiber.HeaderXRequestID)
	}
	u.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
	return c.Next()
}

// RegisterMiddleware attaches global middleware to the app
func RegisterMiddleware(app *fiber.App, cfg u.Config) {
	rateLimitStore = newRateLimitStore(cfg)
	tokenLimiters.reset()

	app.Use(fiberrecover.New())
	app.Use(cors.New())
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return xid.New().String() },
	}))
	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint: "/ops/health",
	}))
	app.Use(newKeyAuth())
	app.Use(tokenRateLimit())
	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(clientRateLimit(cfg))
	}
	app.Use(logRequest)
}

// newRateLimitStore returns a Redis storage when cache.redis_host is set and
// reachable, and process memory otherwise. The Redis storage pings on
// construction and panics when the server is down.
func newRateLimitStore(cfg u.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}
