package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(3)
	now := time.Now()

	t.Run("within limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.True(t, rl.allow("caller-1", now))
		}
	})

	t.Run("over limit", func(t *testing.T) {
		assert.False(t, rl.allow("caller-1", now))
	})

	t.Run("separate callers have separate budgets", func(t *testing.T) {
		assert.True(t, rl.allow("caller-2", now))
	})

	t.Run("window reset restores budget", func(t *testing.T) {
		later := now.Add(2 * time.Minute)
		assert.True(t, rl.allow("caller-1", later))
	})

	t.Run("zero limit denies the first request", func(t *testing.T) {
		closed := newRateLimiter(0)
		assert.False(t, closed.allow("caller-3", now))
		assert.False(t, closed.allow("caller-3", now.Add(2*time.Minute)),
			"fresh windows honor the limit too")
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(rateLimitMiddleware(2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	assert.Equal(t, http.StatusOK, do("u2"), "other callers unaffected")
}
