// Package fare computes the deterministic fare breakdown for a trip. All
// arithmetic is exact decimal (shopspring/decimal), never binary
// floating-point, so the same inputs always bill the same cent.
package fare

import (
	"github.com/ridecore/dispatch/internal/models"
	"github.com/shopspring/decimal"
)

// Config is the per-vehicle-class fare table.
type Config struct {
	Base    decimal.Decimal
	PerKm   decimal.Decimal
	PerMin  decimal.Decimal
	MinFare decimal.Decimal
}

var table = map[models.VehicleClass]Config{
	models.VehicleAuto:  {Base: d(25), PerKm: d(8), PerMin: d(1), MinFare: d(30)},
	models.VehicleMini:  {Base: d(40), PerKm: d(10), PerMin: decimal.NewFromFloat(1.5), MinFare: d(50)},
	models.VehicleSedan: {Base: d(60), PerKm: d(14), PerMin: d(2), MinFare: d(80)},
	models.VehicleSUV:   {Base: d(80), PerKm: d(18), PerMin: decimal.NewFromFloat(2.5), MinFare: d(100)},
}

func d(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

// ConfigFor returns the fare table entry for vehicle, falling back to mini
// for any unknown vehicle class.
func ConfigFor(vehicle models.VehicleClass) Config {
	if cfg, ok := table[vehicle]; ok {
		return cfg
	}
	return table[models.VehicleMini]
}

// durationMinutesAt25kmh is the city-speed assumption used only for fare
// estimation before a trip exists (the actual trip end reports real duration).
func durationMinutesAt25kmh(distanceKm decimal.Decimal) decimal.Decimal {
	if distanceKm.IsZero() {
		return decimal.Zero
	}
	return distanceKm.Div(decimal.NewFromInt(25)).Mul(decimal.NewFromInt(60))
}

// Compute returns the fare breakdown for a vehicle class given a measured
// distance (km), duration (minutes) and surge multiplier.
//
// total = max(min_fare, (base + distance_km*per_km + duration_min*per_min) * surge)
// rounded to two decimals, half-up.
func Compute(vehicle models.VehicleClass, distanceKm, durationMin, surge decimal.Decimal) models.FareBreakdown {
	cfg := ConfigFor(vehicle)

	distanceFare := distanceKm.Mul(cfg.PerKm)
	timeFare := durationMin.Mul(cfg.PerMin)
	subtotal := cfg.Base.Add(distanceFare).Add(timeFare)

	total := subtotal.Mul(surge)
	if total.LessThan(cfg.MinFare) {
		total = cfg.MinFare
	}

	return models.FareBreakdown{
		BaseFare:        cfg.Base.Round(2),
		DistanceFare:    distanceFare.Round(2),
		TimeFare:        timeFare.Round(2),
		SurgeMultiplier: surge.Round(2),
		TotalFare:       total.Round(2),
	}
}

// Estimate computes a pre-trip fare estimate using the 25 km/h city-speed
// assumption for duration; zero distance bills the base fare times surge,
// floored at the minimum fare.
func Estimate(vehicle models.VehicleClass, distanceKm, surge decimal.Decimal) decimal.Decimal {
	durationMin := durationMinutesAt25kmh(distanceKm)
	return Compute(vehicle, distanceKm, durationMin, surge).TotalFare
}
