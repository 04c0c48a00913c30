package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/internal/drivers"
	"github.com/ridecore/dispatch/internal/payments"
	"github.com/ridecore/dispatch/internal/rides"
	"github.com/ridecore/dispatch/internal/trips"
	"github.com/ridecore/dispatch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{
		Rides:    rides.NewHandler(nil),
		Drivers:  drivers.NewHandler(nil),
		Trips:    trips.NewHandler(nil),
		Payments: payments.NewHandler(nil),
	}
	deps := Deps{
		ServiceName: "dispatch-test",
		Version:     "test",
		Timeout: config.TimeoutConfig{
			DefaultRequestTimeout: 5,
		},
		RateLimit:        config.RateLimitConfig{Enabled: false},
		IdempotencyRedis: nil,
		HealthChecks:     map[string]func() error{},
	}
	return New(h, deps)
}

func TestRouter_HealthzReturnsOK(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_HealthReportsDependencyChecks(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status"`)
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_V1RoutesAreRegistered(t *testing.T) {
	router := testRouter(t)
	routes := router.Routes()

	want := map[string]bool{
		"POST /v1/rides":              false,
		"GET /v1/rides":               false,
		"GET /v1/rides/:id":           false,
		"POST /v1/rides/:id/cancel":   false,
		"GET /v1/drivers":             false,
		"GET /v1/drivers/:id":         false,
		"POST /v1/drivers/:id/location": false,
		"POST /v1/drivers/:id/accept": false,
		"POST /v1/trips/:id/start":    false,
		"POST /v1/trips/:id/end":      false,
		"GET /v1/trips/:id":           false,
		"POST /v1/payments":           false,
	}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		assert.True(t, found, "expected route to be registered: %s", route)
	}
}
