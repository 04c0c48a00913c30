// Package events publishes best-effort dispatch events over NATS. Delivery
// is fire-and-forget: a missing or slow subscriber never blocks or fails
// the caller, matching the way the matching engine and ride/trip services
// treat notifications as a side effect, not a transactional write.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/ridecore/dispatch/pkg/logger"
	"go.uber.org/zap"
)

// Type is the event's wire-level discriminant, carried in the JSON payload
// regardless of which NATS subject transports it.
type Type string

const (
	RideRequested       Type = "ride:requested"
	RideOffered         Type = "ride:offered"
	RideMatched         Type = "ride:matched"
	RideStarted         Type = "ride:started"
	RideCompleted       Type = "ride:completed"
	RideCancelled       Type = "ride:cancelled"
	RideNoDrivers       Type = "ride:no_drivers"
	DriverLocationUpdate Type = "driver:location_update"
	DriverStatusChanged Type = "driver:status_changed"
)

const dashboardSubject = "dashboard"

// Publisher fans events out to ride/driver subjects and mirrors every one
// to the dashboard subject. A nil *nats.Conn is valid and makes every
// publish a no-op, useful for tests and for running without NATS configured.
type Publisher struct {
	conn *nats.Conn
}

func New(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// PublishRide publishes an event of typ to the ride.{rideID} subject and
// mirrors it to dashboard. fields are merged into the JSON payload
// alongside type and ride_id.
func (p *Publisher) PublishRide(rideID string, typ Type, fields map[string]interface{}) {
	p.publish(fmt.Sprintf("ride.%s", rideID), typ, mergeField(fields, "ride_id", rideID))
}

// PublishDriver publishes an event of typ to the driver.{driverID} subject
// and mirrors it to dashboard.
func (p *Publisher) PublishDriver(driverID string, typ Type, fields map[string]interface{}) {
	p.publish(fmt.Sprintf("driver.%s", driverID), typ, mergeField(fields, "driver_id", driverID))
}

func (p *Publisher) publish(subject string, typ Type, fields map[string]interface{}) {
	if p.conn == nil {
		return
	}

	payload := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = string(typ)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal event payload", zap.String("subject", subject), zap.Error(err))
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		logger.Error("failed to publish event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(dashboardSubject, data); err != nil {
		logger.Error("failed to mirror event to dashboard", zap.String("subject", subject), zap.Error(err))
	}
}

func mergeField(fields map[string]interface{}, key, value string) map[string]interface{} {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[key] = value
	return merged
}
