package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/pkg/config"
	"github.com/ridecore/dispatch/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout creates a middleware that bounds each request by the
// configured duration, honoring per-route overrides (cfg.TimeoutForRoute).
// If the deadline expires before the handler finishes, it returns a 504
// Gateway Timeout with an X-Timeout marker header. A panicking handler is
// contained here and answered with a 500 rather than killing the server.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := cfg.TimeoutForRoute(c.Request.Method, c.FullPath())

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		panicked := make(chan interface{}, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
					return
				}
				close(done)
			}()
			c.Next()
		}()

		select {
		case <-done:
			// Request completed before timeout
		case p := <-panicked:
			if !c.Writer.Written() {
				c.Abort()
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
			logger.WithContext(c.Request.Context()).Error("Panic in request handler",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Any("panic", p),
			)
		case <-ctx.Done():
			// Timeout expired
			if ctx.Err() == context.DeadlineExceeded {
				if !c.Writer.Written() {
					c.Abort()
					c.Header("X-Timeout", "true")
					c.JSON(http.StatusGatewayTimeout, gin.H{
						"error":   "Request timeout",
						"message": "The request took too long to process",
					})

					logger.WithContext(c.Request.Context()).Warn("Request timeout",
						zap.String("path", c.Request.URL.Path),
						zap.String("method", c.Request.Method),
						zap.Duration("timeout", timeout),
					)
				}
			}
		}
	}
}
