package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockClient(t *testing.T) (*Client, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return &Client{Client: db}, mock
}

func TestIncrWithExpire_IncrementsAndRefreshesTTL(t *testing.T) {
	client, mock := mockClient(t)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("surge:demand:12.97:77.59").SetVal(5)
	mock.ExpectExpire("surge:demand:12.97:77.59", 300*time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()

	n, err := client.IncrWithExpire(context.Background(), "surge:demand:12.97:77.59", 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestZAddScore_AddsMember(t *testing.T) {
	client, mock := mockClient(t)

	mock.ExpectZAdd("offer_expiry_queue", redis.Z{Score: 1754000000, Member: "offer-1"}).SetVal(1)

	err := client.ZAddScore(context.Background(), "offer_expiry_queue", 1754000000, "offer-1")
	require.NoError(t, err)
}

func TestZPopBelow_ReturnsAndRemovesDueMembers(t *testing.T) {
	client, mock := mockClient(t)

	mock.ExpectZRangeByScore("offer_expiry_queue", &redis.ZRangeBy{
		Min: "-inf",
		Max: "1754000000",
	}).SetVal([]string{"offer-1", "offer-2"})
	mock.ExpectZRem("offer_expiry_queue", "offer-1", "offer-2").SetVal(2)

	members, err := client.ZPopBelow(context.Background(), "offer_expiry_queue", 1754000000)
	require.NoError(t, err)
	assert.Equal(t, []string{"offer-1", "offer-2"}, members)
}

func TestZPopBelow_EmptyQueueSkipsRemoval(t *testing.T) {
	client, mock := mockClient(t)

	mock.ExpectZRangeByScore("offer_expiry_queue", &redis.ZRangeBy{
		Min: "-inf",
		Max: "1754000000",
	}).SetVal([]string{})

	members, err := client.ZPopBelow(context.Background(), "offer_expiry_queue", 1754000000)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestGeoSearchNearby_ReturnsMembersWithDistanceAndCoords(t *testing.T) {
	client, mock := mockClient(t)

	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  77.5946,
			Latitude:   12.9716,
			Radius:     2.0,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      10,
		},
		WithCoord: true,
		WithDist:  true,
	}
	mock.ExpectGeoSearchLocation("drivers:geo:mini", query).SetVal([]redis.GeoLocation{
		{Name: "driver-1", Dist: 0.4, Latitude: 12.9720, Longitude: 77.5950},
		{Name: "driver-2", Dist: 1.1, Latitude: 12.9650, Longitude: 77.5900},
	})

	members, err := client.GeoSearchNearby(context.Background(), "drivers:geo:mini", 12.9716, 77.5946, 2.0, 10)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "driver-1", members[0].Name)
	assert.Equal(t, 0.4, members[0].DistanceKm)
	assert.Equal(t, 12.9720, members[0].Lat)
	assert.Equal(t, 77.5950, members[0].Lng)
}
