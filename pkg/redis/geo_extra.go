package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ridecore/dispatch/pkg/tracing"
)

const tracerName = "pkg.redis"

// GeoMember is a single geo-indexed point returned with distance and
// coordinates, sorted ascending by distance from the query point.
type GeoMember struct {
	Name      string
	DistanceKm float64
	Lat       float64
	Lng       float64
}

// GeoSearchNearby returns up to count members of key within radiusKm of
// (lat, lng), sorted ascending by distance, each carrying its coordinates.
// count <= 0 means unbounded.
func (c *Client) GeoSearchNearby(ctx context.Context, key string, lat, lng, radiusKm float64, count int) ([]GeoMember, error) {
	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}
	if count > 0 {
		query.Count = count
	}

	var results []redis.GeoLocation
	err := tracing.TraceRedisCommand(ctx, tracerName, "GEOSEARCH", key, func() error {
		var cmdErr error
		results, cmdErr = c.Client.GeoSearchLocation(ctx, key, query).Result()
		return cmdErr
	})
	if err != nil {
		return nil, err
	}

	members := make([]GeoMember, 0, len(results))
	for _, r := range results {
		members = append(members, GeoMember{
			Name:       r.Name,
			DistanceKm: r.Dist,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
		})
	}
	return members, nil
}

// GeoCountNearby counts members of key within radiusKm of (lat, lng).
func (c *Client) GeoCountNearby(ctx context.Context, key string, lat, lng, radiusKm float64) (int, error) {
	members, err := c.GeoSearchNearby(ctx, key, lat, lng, radiusKm, 0)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// PipelineGeoAddAndHeartbeat atomically upserts a geo point and refreshes a
// TTL'd heartbeat key in a single round trip.
func (c *Client) PipelineGeoAddAndHeartbeat(ctx context.Context, geoKey string, lng, lat float64, member, heartbeatKey string, heartbeatTTL time.Duration) error {
	return tracing.TraceRedisCommand(ctx, tracerName, "GEOADD+SET", geoKey, func() error {
		pipe := c.Client.TxPipeline()
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: lng, Latitude: lat, Name: member})
		pipe.Set(ctx, heartbeatKey, time.Now().Unix(), heartbeatTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// IncrWithExpire atomically increments a counter and (re)sets its TTL.
func (c *Client) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ZAddScore adds a single member with the given score to a sorted set.
func (c *Client) ZAddScore(ctx context.Context, key string, score float64, member interface{}) error {
	return c.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZPopBelow returns and removes every member of a sorted set whose score is
// <= max, used to drain the offer expiry queue. It issues ZRANGEBYSCORE and
// then a ZREM of the returned members as two separate commands, so the pair
// is not atomic: two concurrent callers can both receive the same member.
func (c *Client) ZPopBelow(ctx context.Context, key string, max float64) ([]string, error) {
	members, err := c.Client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := c.Client.ZRem(ctx, key, args...).Err(); err != nil {
		return nil, err
	}
	return members, nil
}
