package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("should timeout after configured duration", func(t *testing.T) {
		// real multi-second sleeps, keep them out of the short suite
		if testing.Short() {
			t.Skip("Skipping timeout test in short mode")
		}

		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1, // 1 second
			RouteOverrides:        make(map[string]int),
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/slow", func(c *gin.Context) {
			// Sleep longer than timeout
			time.Sleep(2 * time.Second)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req := httptest.NewRequest(http.MethodGet, "/slow", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), "Request timeout")
		assert.Equal(t, "true", w.Header().Get("X-Timeout"))
	})

	t.Run("should not timeout if request completes in time", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 2, // 2 seconds
			RouteOverrides:        make(map[string]int),
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/fast", func(c *gin.Context) {
			// Complete before timeout
			time.Sleep(100 * time.Millisecond)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req := httptest.NewRequest(http.MethodGet, "/fast", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "success")
		assert.Empty(t, w.Header().Get("X-Timeout"))
	})

	t.Run("should use route-specific timeout override", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1, // 1 second default
			RouteOverrides: map[string]int{
				"GET:/custom": 3, // 3 seconds for this route
			},
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/custom", func(c *gin.Context) {
			// Sleep 2 seconds - should not timeout because route has 3 second timeout
			time.Sleep(2 * time.Second)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req := httptest.NewRequest(http.MethodGet, "/custom", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "success")
	})

	t.Run("should not respond if already written", func(t *testing.T) {
		// In production, handlers should not keep working after writing responses
		t.Skip("middleware only guards unwritten responses; a late write is the handler's bug")
	})

	t.Run("should handle panic in timeout middleware", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1,
			RouteOverrides:        make(map[string]int),
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		w := httptest.NewRecorder()

		// Should not crash the server
		require.NotPanics(t, func() {
			router.ServeHTTP(w, req)
		})
	})

	t.Run("should propagate correlation ID on timeout", func(t *testing.T) {
		// real multi-second sleeps, keep them out of the short suite
		if testing.Short() {
			t.Skip("Skipping timeout test in short mode")
		}

		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1,
			RouteOverrides:        make(map[string]int),
		}

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/slow", func(c *gin.Context) {
			time.Sleep(2 * time.Second)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req := httptest.NewRequest(http.MethodGet, "/slow", nil)
		req.Header.Set(CorrelationIDHeader, "550e8400-e29b-41d4-a716-446655440000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		// Correlation ID should be in response headers
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", w.Header().Get(CorrelationIDHeader))
	})
}

func TestTimeoutConfigTimeoutForRoute(t *testing.T) {
	t.Run("should return default timeout when no override exists", func(t *testing.T) {
		cfg := config.TimeoutConfig{
			DefaultRequestTimeout: 30,
			RouteOverrides:        make(map[string]int),
		}

		timeout := cfg.TimeoutForRoute("GET", "/api/v1/users")
		assert.Equal(t, 30*time.Second, timeout)
	})

	t.Run("should return route-specific timeout when override exists", func(t *testing.T) {
		cfg := config.TimeoutConfig{
			DefaultRequestTimeout: 30,
			RouteOverrides: map[string]int{
				"POST:/api/v1/rides": 60,
			},
		}

		timeout := cfg.TimeoutForRoute("POST", "/api/v1/rides")
		assert.Equal(t, 60*time.Second, timeout)
	})

	t.Run("should return default for different method", func(t *testing.T) {
		cfg := config.TimeoutConfig{
			DefaultRequestTimeout: 30,
			RouteOverrides: map[string]int{
				"POST:/api/v1/rides": 60,
			},
		}

		timeout := cfg.TimeoutForRoute("GET", "/api/v1/rides")
		assert.Equal(t, 30*time.Second, timeout)
	})

	t.Run("should ignore invalid timeout values", func(t *testing.T) {
		cfg := config.TimeoutConfig{
			DefaultRequestTimeout: 30,
			RouteOverrides: map[string]int{
				"POST:/api/v1/rides": 0, // Invalid
			},
		}

		timeout := cfg.TimeoutForRoute("POST", "/api/v1/rides")
		assert.Equal(t, 30*time.Second, timeout)
	})
}

func TestTimeoutWithContext(t *testing.T) {
	t.Run("should cancel context on timeout", func(t *testing.T) {
		// real multi-second sleeps, keep them out of the short suite
		if testing.Short() {
			t.Skip("Skipping timeout test in short mode")
		}

		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1,
			RouteOverrides:        make(map[string]int),
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))

		var ctxCanceled bool
		router.GET("/test", func(c *gin.Context) {
			ctx := c.Request.Context()
			select {
			case <-ctx.Done():
				ctxCanceled = true
				c.JSON(http.StatusRequestTimeout, gin.H{"error": "context canceled"})
			case <-time.After(2 * time.Second):
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			}
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		// Context should be canceled due to timeout
		assert.True(t, ctxCanceled || w.Code == http.StatusGatewayTimeout)
	})
}

func BenchmarkRequestTimeout(b *testing.B) {
	gin.SetMode(gin.TestMode)

	timeoutConfig := &config.TimeoutConfig{
		DefaultRequestTimeout: 30,
		RouteOverrides:        make(map[string]int),
	}

	router := gin.New()
	router.Use(RequestTimeout(timeoutConfig))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
