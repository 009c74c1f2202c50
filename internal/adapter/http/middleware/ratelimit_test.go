package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-service/config"
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/adapter/storage/memory"
	redisStore "wallet-service/internal/adapter/storage/redis"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/core/ports/mocks"
	"wallet-service/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(limiter ports.RateLimiter, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", middleware.RateLimiter(limiter, "read", rule, m, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doGet(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_Backends(t *testing.T) {
	backends := map[string]func(t *testing.T) ports.RateLimiter{
		"redis": func(t *testing.T) ports.RateLimiter {
			mr := miniredis.RunT(t)
			client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return redisStore.NewRateLimitStore(client)
		},
		"memory": func(t *testing.T) ports.RateLimiter {
			return memory.NewRateLimiter()
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			m := metrics.New()
			router := setupRateLimitRouter(build(t), m)

			for i := 0; i < 3; i++ {
				w := doGet(router, "")
				assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
				assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
			}

			w := doGet(router, "")
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Contains(t, w.Body.String(), "RATE_001")
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		})
	}
}

func TestRateLimiter_KeyedByClientIP(t *testing.T) {
	router := setupRateLimitRouter(memory.NewRateLimiter(), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "10.0.0.1:1234").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, doGet(router, "10.0.0.2:1234").Code)
}

func TestRateLimiter_DegradedMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), int64(3), time.Minute).
		Return(nil, errors.New("redis: connection refused"))

	router := setupRateLimitRouter(limiter, nil)
	w := doGet(router, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitRules(t *testing.T) {
	rules := middleware.RateLimitRules(config.RateLimitConfig{
		Read:  config.RateLimitPolicy{Limit: 300, Window: time.Minute},
		Write: config.RateLimitPolicy{Limit: 120, Window: 30 * time.Second},
	})

	assert.Equal(t, middleware.RateLimitRule{Limit: 300, Window: time.Minute}, rules[middleware.GroupRead])
	assert.Equal(t, middleware.RateLimitRule{Limit: 120, Window: 30 * time.Second}, rules[middleware.GroupWrite])
}
