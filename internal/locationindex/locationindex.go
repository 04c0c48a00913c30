// Package locationindex tracks live driver positions in Redis geo sets,
// one set per vehicle class, with a separate TTL heartbeat key per driver.
package locationindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/models"
	pkgredis "github.com/ridecore/dispatch/pkg/redis"
)

const heartbeatTTL = 30 * time.Second

// Candidate is a driver found near a point, ordered ascending by distance.
type Candidate struct {
	DriverID   uuid.UUID
	DistanceKm float64
	Lat        float64
	Lng        float64
}

// redisPort is the slice of the Redis client this package depends on,
// kept narrow so it can be faked in tests without a live server.
type redisPort interface {
	PipelineGeoAddAndHeartbeat(ctx context.Context, geoKey string, lng, lat float64, member, heartbeatKey string, ttl time.Duration) error
	GeoRemove(ctx context.Context, key, member string) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	GeoSearchNearby(ctx context.Context, key string, lat, lng, radiusKm float64, count int) ([]pkgredis.GeoMember, error)
	GeoCountNearby(ctx context.Context, key string, lat, lng, radiusKm float64) (int, error)
}

// Index is the driver geo-index backed by Redis.
type Index struct {
	redis redisPort
}

func New(redis redisPort) *Index {
	return &Index{redis: redis}
}

func geoKey(vehicle models.VehicleClass) string {
	return fmt.Sprintf("drivers:geo:%s", vehicle)
}

func heartbeatKey(driverID uuid.UUID) string {
	return fmt.Sprintf("drivers:lastping:%s", driverID)
}

// UpdateLocation upserts the driver's point into its vehicle class's geo
// set and refreshes its heartbeat, in one pipelined round trip.
func (i *Index) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, vehicle models.VehicleClass) error {
	return i.redis.PipelineGeoAddAndHeartbeat(ctx, geoKey(vehicle), lng, lat, driverID.String(), heartbeatKey(driverID), heartbeatTTL)
}

// RemoveDriver deletes the driver from its vehicle class's geo set and
// clears its heartbeat.
func (i *Index) RemoveDriver(ctx context.Context, driverID uuid.UUID, vehicle models.VehicleClass) error {
	if err := i.redis.GeoRemove(ctx, geoKey(vehicle), driverID.String()); err != nil {
		return err
	}
	return i.redis.Delete(ctx, heartbeatKey(driverID))
}

// FindNearby returns up to count drivers of vehicle within radiusKm of
// (lat, lng), sorted ascending by distance.
func (i *Index) FindNearby(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, radiusKm float64, count int) ([]Candidate, error) {
	members, err := i.redis.GeoSearchNearby(ctx, geoKey(vehicle), lat, lng, radiusKm, count)
	if err != nil {
		return nil, err
	}
	return toCandidates(members)
}

// CountNearby returns the number of drivers of vehicle within radiusKm of
// (lat, lng), with no count cap.
func (i *Index) CountNearby(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, radiusKm float64) (int, error) {
	return i.redis.GeoCountNearby(ctx, geoKey(vehicle), lat, lng, radiusKm)
}

// IsAlive reports whether the driver's heartbeat key still exists.
func (i *Index) IsAlive(ctx context.Context, driverID uuid.UUID) (bool, error) {
	return i.redis.Exists(ctx, heartbeatKey(driverID))
}

func toCandidates(members []pkgredis.GeoMember) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m.Name)
		if err != nil {
			// a malformed member shouldn't abort the whole search; skip it.
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   id,
			DistanceKm: m.DistanceKm,
			Lat:        m.Lat,
			Lng:        m.Lng,
		})
	}
	return candidates, nil
}
