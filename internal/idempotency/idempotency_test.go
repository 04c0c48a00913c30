package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

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

func (f *fakeRedis) SetWithExpiration(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := value.(string); ok {
		f.store[key] = v
	}
	return nil
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

func TestCacheKey_IncludesKeyAndEndpoint(t *testing.T) {
	assert.Equal(t, "idemp:abc:payments", cacheKey("abc", "payments"))
}

func TestCheck_FastLayerHitShortCircuitsBeforeDB(t *testing.T) {
	redis := newFakeRedis()
	store := &Store{redis: redis}

	err := redis.SetWithExpiration(context.Background(), cacheKey("req-1", "payments"), `{"response_code":200,"response_body":{"payment_id":"p1"}}`, fastTTL)
	require.NoError(t, err)

	rec, err := store.Check(context.Background(), "req-1", "payments")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 200, rec.ResponseCode)
}
