// Package surge computes a per-zone demand multiplier applied on top of the
// base fare. Zones are fixed-size grid cells rather than anything
// topology-aware; see internal/fare for how the multiplier is consumed.
package surge

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ridecore/dispatch/internal/models"
	"github.com/ridecore/dispatch/pkg/logger"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

const (
	// ZoneGrid is the width of a surge zone cell in degrees (~1.1km at the equator).
	ZoneGrid = 0.01

	demandTTL     = 300 * time.Second
	multiplierTTL = 120 * time.Second

	demandPrefix     = "surge:demand"
	multiplierPrefix = "surge:multiplier"

	// Max is the ceiling the multiplier is clamped to.
	Max = 3.0

	supplyRadiusKm = 3.0

	// h3Resolution is used only for the supplemental, non-authoritative
	// zone_h3 label attached to surge snapshots.
	h3Resolution = 8
)

type redisPort interface {
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetString(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type supplyCounter interface {
	CountNearby(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, radiusKm float64) (int, error)
}

// Engine is the surge pricing engine.
type Engine struct {
	redis  redisPort
	supply supplyCounter
}

func New(redis redisPort, supply supplyCounter) *Engine {
	return &Engine{redis: redis, supply: supply}
}

// ZoneKey quantizes a coordinate to its grid cell, formatted to two decimals.
func ZoneKey(lat, lng float64) string {
	gridLat := math.Floor(lat/ZoneGrid) * ZoneGrid
	gridLng := math.Floor(lng/ZoneGrid) * ZoneGrid
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLng)
}

// ZoneH3 returns the supplemental, non-authoritative H3 cell label for a
// coordinate at the surge resolution. It never participates in the
// multiplier formula, which is defined purely in terms of ZoneKey.
func ZoneH3(lat, lng float64) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), h3Resolution)
	if err != nil {
		return ""
	}
	return cell.String()
}

// RecordDemand increments the zone's demand counter and refreshes its TTL.
func (e *Engine) RecordDemand(ctx context.Context, lat, lng float64) error {
	key := fmt.Sprintf("%s:%s", demandPrefix, ZoneKey(lat, lng))
	_, err := e.redis.IncrWithExpire(ctx, key, demandTTL)
	return err
}

// GetMultiplier returns the current surge multiplier for the zone
// containing (lat, lng), serving from the cached value when present and
// otherwise recomputing and re-caching it.
func (e *Engine) GetMultiplier(ctx context.Context, lat, lng float64, vehicle models.VehicleClass) (float64, error) {
	zone := ZoneKey(lat, lng)
	cacheKey := fmt.Sprintf("%s:%s", multiplierPrefix, zone)

	if cached, err := e.redis.GetString(ctx, cacheKey); err == nil && cached != "" {
		if m, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return m, nil
		}
	}

	return e.computeMultiplier(ctx, lat, lng, vehicle, zone, cacheKey)
}

func (e *Engine) computeMultiplier(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, zone, cacheKey string) (float64, error) {
	demandKey := fmt.Sprintf("%s:%s", demandPrefix, zone)
	demandStr, err := e.redis.GetString(ctx, demandKey)
	var demand int64
	if err == nil && demandStr != "" {
		demand, _ = strconv.ParseInt(demandStr, 10, 64)
	}

	supply, err := e.supply.CountNearby(ctx, lat, lng, vehicle, supplyRadiusKm)
	if err != nil {
		return 0, fmt.Errorf("surge: count nearby supply: %w", err)
	}

	var multiplier float64
	if supply == 0 {
		if demand > 0 {
			multiplier = Max
		} else {
			multiplier = 1.0
		}
	} else {
		ratio := float64(demand) / float64(supply)
		multiplier = math.Min(1.0+(ratio-1)*0.5, Max)
		multiplier = math.Max(multiplier, 1.0)
	}
	multiplier = math.Round(multiplier*100) / 100

	// failing to cache costs a recompute next call, never the answer.
	if err := e.redis.SetWithExpiration(ctx, cacheKey, strconv.FormatFloat(multiplier, 'f', 2, 64), multiplierTTL); err != nil {
		logger.Error("failed to cache surge multiplier", zap.String("zone", zone), zap.Error(err))
	}
	return multiplier, nil
}
