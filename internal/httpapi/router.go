// Package httpapi wires the dispatch core's services onto the /v1 HTTP
// surface: rides, driver location/offer responses, trips and payments,
// plus the ambient health/metrics endpoints.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridecore/dispatch/internal/drivers"
	"github.com/ridecore/dispatch/internal/payments"
	"github.com/ridecore/dispatch/internal/rides"
	"github.com/ridecore/dispatch/internal/trips"
	"github.com/ridecore/dispatch/pkg/common"
	"github.com/ridecore/dispatch/pkg/config"
	"github.com/ridecore/dispatch/pkg/middleware"
	"github.com/ridecore/dispatch/pkg/ratelimit"
	redisClient "github.com/ridecore/dispatch/pkg/redis"
)

// Handlers bundles the per-domain HTTP handlers the router mounts.
type Handlers struct {
	Rides    *rides.Handler
	Drivers  *drivers.Handler
	Trips    *trips.Handler
	Payments *payments.Handler
}

// Deps carries everything the router needs beyond the handlers themselves:
// the ambient middleware stack and the liveness/readiness dependency checks.
type Deps struct {
	ServiceName  string
	Version      string
	Timeout      config.TimeoutConfig
	RateLimit    config.RateLimitConfig
	Limiter      *ratelimit.Limiter
	IdempotencyRedis redisClient.ClientInterface
	TracingEnabled   bool
	HealthChecks     map[string]func() error
}

// New builds the gin engine for the dispatch core: the teacher's ambient
// middleware chain (recovery, Sentry, correlation id, timeout, logging,
// CORS, optional tracing, error handler) plus the domain route table.
func New(h Handlers, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(&deps.Timeout))
	router.Use(middleware.RequestLogger(deps.ServiceName))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(deps.Limiter, deps.RateLimit))
	if deps.TracingEnabled {
		router.Use(middleware.TracingMiddleware(deps.ServiceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/health", common.HealthCheckWithDeps(deps.ServiceName, deps.Version, deps.HealthChecks))
	router.GET("/healthz", common.HealthCheck(deps.ServiceName, deps.Version))
	router.GET("/health/live", common.LivenessProbe(deps.ServiceName, deps.Version))
	router.GET("/health/ready", common.HealthCheckWithDeps(deps.ServiceName, deps.Version, deps.HealthChecks))
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": deps.ServiceName, "version": deps.Version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(common.NoRouteHandler())
	router.NoMethod(common.NoMethodHandler())

	idempotent := middleware.Idempotency(deps.IdempotencyRedis)

	v1 := router.Group("/v1")
	{
		rideRoutes := v1.Group("/rides")
		rideRoutes.POST("", idempotent, h.Rides.CreateRide)
		rideRoutes.GET("", h.Rides.ListRides)
		rideRoutes.GET("/:id", h.Rides.GetRide)
		rideRoutes.POST("/:id/cancel", idempotent, h.Rides.CancelRide)

		driverRoutes := v1.Group("/drivers")
		driverRoutes.GET("", h.Drivers.ListDrivers)
		driverRoutes.GET("/:id", h.Drivers.GetDriver)
		driverRoutes.POST("/:id/location", h.Drivers.UpdateLocation)
		driverRoutes.POST("/:id/accept", idempotent, h.Rides.AcceptOffer)

		// /trips/{id}/start takes a ride id, the other two a trip id; gin
		// requires one wildcard name per segment, so both bind as :id.
		tripRoutes := v1.Group("/trips")
		tripRoutes.POST("/:id/start", idempotent, h.Trips.StartTrip)
		tripRoutes.POST("/:id/end", idempotent, h.Trips.EndTrip)
		tripRoutes.GET("/:id", h.Trips.GetTrip)

		paymentRoutes := v1.Group("/payments")
		paymentRoutes.POST("", idempotent, h.Payments.ProcessPayment)
	}

	return router
}
