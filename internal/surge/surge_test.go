package surge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ridecore/dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu    sync.Mutex
	store map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: make(map[string]string)}
}

func (f *fakeRedis) IncrWithExpire(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var v int64
	fmt.Sscanf(f.store[key], "%d", &v)
	v++
	f.store[key] = fmt.Sprintf("%d", v)
	return v, nil
}

func (f *fakeRedis) GetString(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	if !ok {
		return "", context.DeadlineExceeded
	}
	return v, nil
}

func (f *fakeRedis) SetWithExpiration(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = fmt.Sprintf("%v", value)
	return nil
}

type fakeSupply struct {
	count int
	err   error
}

func (f *fakeSupply) CountNearby(_ context.Context, _, _ float64, _ models.VehicleClass, _ float64) (int, error) {
	return f.count, f.err
}

func TestZoneKey_QuantizesToGrid(t *testing.T) {
	assert.Equal(t, "12.97:77.59", ZoneKey(12.9716, 77.5946))
	assert.Equal(t, "12.97:77.59", ZoneKey(12.979, 77.599))
}

func TestRecordDemand_IncrementsZoneCounter(t *testing.T) {
	redis := newFakeRedis()
	engine := New(redis, &fakeSupply{count: 1})
	ctx := context.Background()

	require.NoError(t, engine.RecordDemand(ctx, 12.9716, 77.5946))
	require.NoError(t, engine.RecordDemand(ctx, 12.9716, 77.5946))

	v, err := redis.GetString(ctx, "surge:demand:"+ZoneKey(12.9716, 77.5946))
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestGetMultiplier_NoDemandNoSupplyIsBaseline(t *testing.T) {
	redis := newFakeRedis()
	engine := New(redis, &fakeSupply{count: 0})

	m, err := engine.GetMultiplier(context.Background(), 12.9716, 77.5946, models.VehicleMini)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}

func TestGetMultiplier_ZeroSupplyWithDemandHitsMax(t *testing.T) {
	redis := newFakeRedis()
	engine := New(redis, &fakeSupply{count: 0})
	ctx := context.Background()

	require.NoError(t, engine.RecordDemand(ctx, 12.9716, 77.5946))
	m, err := engine.GetMultiplier(ctx, 12.9716, 77.5946, models.VehicleMini)
	require.NoError(t, err)
	assert.Equal(t, Max, m)
}

func TestGetMultiplier_AppliesRatioFormula(t *testing.T) {
	redis := newFakeRedis()
	engine := New(redis, &fakeSupply{count: 2})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, engine.RecordDemand(ctx, 12.9716, 77.5946))
	}
	// demand=4, supply=2, ratio=2, multiplier = 1 + (2-1)*0.5 = 1.5
	m, err := engine.GetMultiplier(ctx, 12.9716, 77.5946, models.VehicleMini)
	require.NoError(t, err)
	assert.Equal(t, 1.5, m)
}

func TestGetMultiplier_ServesCachedValueWithoutRecomputing(t *testing.T) {
	redis := newFakeRedis()
	supply := &fakeSupply{count: 1}
	engine := New(redis, supply)
	ctx := context.Background()

	require.NoError(t, redis.SetWithExpiration(ctx, "surge:multiplier:"+ZoneKey(12.9716, 77.5946), "2.75", multiplierTTL))

	m, err := engine.GetMultiplier(ctx, 12.9716, 77.5946, models.VehicleMini)
	require.NoError(t, err)
	assert.Equal(t, 2.75, m)
}

func TestZoneH3_ReturnsNonEmptyCellLabel(t *testing.T) {
	cell := ZoneH3(12.9716, 77.5946)
	assert.NotEmpty(t, cell)
}
