package locationindex

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/models"
	pkgredis "github.com/ridecore/dispatch/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is a minimal in-memory stand-in for redisPort.
type fakeRedis struct {
	mu         sync.Mutex
	points     map[string]map[string][2]float64 // key -> member -> (lat,lng)
	heartbeats map[string]bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		points:     make(map[string]map[string][2]float64),
		heartbeats: make(map[string]bool),
	}
}

func (f *fakeRedis) PipelineGeoAddAndHeartbeat(_ context.Context, geoKey string, lng, lat float64, member, heartbeatKey string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points[geoKey] == nil {
		f.points[geoKey] = make(map[string][2]float64)
	}
	f.points[geoKey][member] = [2]float64{lat, lng}
	f.heartbeats[heartbeatKey] = true
	return nil
}

func (f *fakeRedis) GeoRemove(_ context.Context, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points[key], member)
	return nil
}

func (f *fakeRedis) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.heartbeats, k)
	}
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats[key], nil
}

func (f *fakeRedis) GeoSearchNearby(_ context.Context, key string, lat, lng, radiusKm float64, count int) ([]pkgredis.GeoMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pkgredis.GeoMember
	for member, p := range f.points[key] {
		d := haversine(lat, lng, p[0], p[1])
		if d <= radiusKm {
			out = append(out, pkgredis.GeoMember{Name: member, DistanceKm: d, Lat: p[0], Lng: p[1]})
		}
	}
	// insertion sort, good enough for small test fixtures.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].DistanceKm < out[j-1].DistanceKm; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeRedis) GeoCountNearby(ctx context.Context, key string, lat, lng, radiusKm float64) (int, error) {
	members, err := f.GeoSearchNearby(ctx, key, lat, lng, radiusKm, 0)
	return len(members), err
}

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const r = 6371.0
	phi1, phi2 := lat1*math.Pi/180, lat2*math.Pi/180
	dPhi, dLambda := (lat2-lat1)*math.Pi/180, (lng2-lng1)*math.Pi/180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return r * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func TestUpdateLocation_ThenFindNearby(t *testing.T) {
	redis := newFakeRedis()
	idx := New(redis)
	ctx := context.Background()

	driverID := uuid.New()
	require.NoError(t, idx.UpdateLocation(ctx, driverID, 12.9716, 77.5946, models.VehicleMini))

	candidates, err := idx.FindNearby(ctx, 12.9716, 77.5946, models.VehicleMini, 2.0, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, driverID, candidates[0].DriverID)
	assert.InDelta(t, 0.0, candidates[0].DistanceKm, 1e-6)

	alive, err := idx.IsAlive(ctx, driverID)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestFindNearby_SortsAscendingAndRespectsCount(t *testing.T) {
	redis := newFakeRedis()
	idx := New(redis)
	ctx := context.Background()

	near := uuid.New()
	far := uuid.New()
	require.NoError(t, idx.UpdateLocation(ctx, far, 12.99, 77.62, models.VehicleMini))
	require.NoError(t, idx.UpdateLocation(ctx, near, 12.9716, 77.5946, models.VehicleMini))

	candidates, err := idx.FindNearby(ctx, 12.9716, 77.5946, models.VehicleMini, 10.0, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, near, candidates[0].DriverID)
}

func TestFindNearby_VehicleClassesAreIsolated(t *testing.T) {
	redis := newFakeRedis()
	idx := New(redis)
	ctx := context.Background()

	require.NoError(t, idx.UpdateLocation(ctx, uuid.New(), 12.9716, 77.5946, models.VehicleSUV))

	candidates, err := idx.FindNearby(ctx, 12.9716, 77.5946, models.VehicleMini, 5.0, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRemoveDriver_ClearsLocationAndHeartbeat(t *testing.T) {
	redis := newFakeRedis()
	idx := New(redis)
	ctx := context.Background()

	driverID := uuid.New()
	require.NoError(t, idx.UpdateLocation(ctx, driverID, 12.9716, 77.5946, models.VehicleAuto))
	require.NoError(t, idx.RemoveDriver(ctx, driverID, models.VehicleAuto))

	candidates, err := idx.FindNearby(ctx, 12.9716, 77.5946, models.VehicleAuto, 5.0, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	alive, err := idx.IsAlive(ctx, driverID)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestCountNearby_MatchesFindNearbyLength(t *testing.T) {
	redis := newFakeRedis()
	idx := New(redis)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, idx.UpdateLocation(ctx, uuid.New(), 12.97+float64(i)*0.001, 77.59, models.VehicleSedan))
	}

	count, err := idx.CountNearby(ctx, 12.9716, 77.5946, models.VehicleSedan, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGeoKeyAndHeartbeatKey_NamingConvention(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, fmt.Sprintf("drivers:geo:%s", models.VehicleMini), geoKey(models.VehicleMini))
	assert.Equal(t, fmt.Sprintf("drivers:lastping:%s", id), heartbeatKey(id))
}
