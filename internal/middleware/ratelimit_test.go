package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(m *RateLimitMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sos", m.Handler(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestRateLimitNilRedisNoOp(t *testing.T) {
	r := newLimitedRouter(NewRateLimitMiddleware(nil, 1, time.Minute))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sos", nil))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
}

func TestRateLimitSubSecondWindow(t *testing.T) {
	// Unreachable Redis makes the limiter fail open, but the bucket math
	// still runs; a sub-second window must not divide by zero.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	r := newLimitedRouter(NewRateLimitMiddleware(client, 1, 500*time.Millisecond))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sos", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}
