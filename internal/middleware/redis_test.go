package middleware

import (
    "bytes"
    "net/http"
    "strconv"
    "strings"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/utsavlook/booking-functions/internal/config"
    "github.com/utsavlook/booking-functions/internal/logger"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func cacheConfig() config.CacheConfig {
    return config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        KeyStrategy:  "route_query",
        Prefix:       "cache",
        MaxBodyBytes: 1 << 20,
    }
}

func TestRedisCacheServesSecondGetFromCache(t *testing.T) {
    mr, rdb := newRedis(t)
    calls := 0
    e := echo.New()
    e.GET("/v1/jobs", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"count": 1})
    }, NewRedisCache(cacheConfig(), rdb))

    first := serve(e, http.MethodGet, "/v1/jobs?limit=5", "")
    require.Equal(t, http.StatusOK, first.Code)
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

    second := serve(e, http.MethodGet, "/v1/jobs?limit=5", "")
    require.Equal(t, http.StatusOK, second.Code)
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Contains(t, second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
    assert.Equal(t, 1, calls)

    keys := mr.Keys()
    require.Len(t, keys, 1)
    assert.True(t, strings.HasPrefix(keys[0], "cache:"))
    assert.Equal(t, time.Minute, mr.TTL(keys[0]))

    other := serve(e, http.MethodGet, "/v1/jobs?limit=6", "")
    assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
    assert.Equal(t, 2, calls)
}

func TestRedisCacheSkipsErrorsAndLargeBodies(t *testing.T) {
    mr, rdb := newRedis(t)
    cfg := cacheConfig()
    cfg.MaxBodyBytes = 16
    calls := 0
    e := echo.New()
    mw := NewRedisCache(cfg, rdb)
    e.GET("/v1/bookings/:id", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Booking not found.", "code": "not-found"})
    }, mw)
    e.GET("/v1/jobs", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, strings.Repeat("x", 64))
    }, mw)

    for i := 0; i < 2; i++ {
        rec := serve(e, http.MethodGet, "/v1/bookings/B404", "")
        assert.Equal(t, http.StatusNotFound, rec.Code)
        assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    }
    for i := 0; i < 2; i++ {
        rec := serve(e, http.MethodGet, "/v1/jobs", "")
        require.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, strings.Repeat("x", 64), rec.Body.String())
        assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    }
    assert.Equal(t, 4, calls)
    assert.Empty(t, mr.Keys())
}

func TestRedisCacheIgnoresUncachedMethods(t *testing.T) {
    mr, rdb := newRedis(t)
    e := echo.New()
    e.POST("/v1/functions/claimJob", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"success": true})
    }, NewRedisCache(cacheConfig(), rdb))

    rec := serve(e, http.MethodPost, "/v1/functions/claimJob", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-Cache"))
    assert.Empty(t, mr.Keys())
}

func redisBucketConfig(capacity int) config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       capacity,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            5 * time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    }
}

func TestTokenBucketRedisBlocksAtCapacity(t *testing.T) {
    mr, rdb := newRedis(t)
    cfg := redisBucketConfig(2)
    ok := func(c echo.Context) error { return c.String(http.StatusOK, "pong") }

    e := echo.New()
    e.GET("/ping", ok, NewTokenBucket(cfg, rdb, logger.Discard()))

    for _, want := range []string{"1", "0"} {
        rec := serve(e, http.MethodGet, "/ping", "")
        require.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
        assert.Equal(t, want, rec.Header().Get("X-RateLimit-Remaining"))
    }

    rec := serve(e, http.MethodGet, "/ping", "")
    require.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.Contains(t, rec.Body.String(), "resource-exhausted")
    retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
    require.NoError(t, err)
    assert.Greater(t, retry, 0)
    assert.LessOrEqual(t, retry, 3600)

    key := "rl:ip:203.0.113.9"
    assert.True(t, mr.Exists(key))
    assert.Equal(t, 5*time.Hour, mr.TTL(key))

    // A second replica shares the same bucket.
    other := echo.New()
    other.GET("/ping", ok, NewTokenBucket(cfg, rdb, logger.Discard()))
    assert.Equal(t, http.StatusTooManyRequests, serve(other, http.MethodGet, "/ping", "").Code)
}

func TestTokenBucketLogsRedisOutageOnce(t *testing.T) {
    mr, rdb := newRedis(t)
    var logs bytes.Buffer
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") },
        NewTokenBucket(redisBucketConfig(10), rdb, logger.New(&logs, "test", "debug")))

    require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
    assert.Empty(t, logs.String())

    mr.Close()
    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
    }
    assert.Equal(t, 1, strings.Count(logs.String(), "redis unavailable"))

    require.NoError(t, mr.Restart())
    for i := 0; i < 5 && !strings.Contains(logs.String(), "reachable again"); i++ {
        serve(e, http.MethodGet, "/ping", "")
    }
    assert.Equal(t, 1, strings.Count(logs.String(), "reachable again"))
}
