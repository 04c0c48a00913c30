// Package notifications sends best-effort SMS to riders for the two events
// worth an out-of-band nudge: a driver match, and the no-drivers-available
// outcome. It parallels the NATS event publish rather than replacing it —
// the same send-and-forget contract applies, so a Twilio outage never
// blocks or fails the ride/matching flow.
package notifications

import (
	"fmt"

	"github.com/ridecore/dispatch/pkg/logger"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// SMSClient is the Twilio surface this package depends on.
type SMSClient struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewSMSClient(accountSID, authToken, fromNumber string) *SMSClient {
	return &SMSClient{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

func (t *SMSClient) SendSMS(to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("notifications: send sms: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("notifications: no message sid returned")
	}
	return *resp.Sid, nil
}

// smsSender is the narrow port Notifier depends on, so tests can fake
// Twilio without a live account.
type smsSender interface {
	SendSMS(to, body string) (string, error)
}

// Notifier sends ride-matched and no-drivers SMS nudges. A nil client
// (Twilio not configured) makes every call a silent no-op, matching
// events.Publisher's nil-conn contract.
type Notifier struct {
	sms smsSender
}

func NewNotifier(sms smsSender) *Notifier {
	return &Notifier{sms: sms}
}

// NotifyMatched tells the rider a driver has been found.
func (n *Notifier) NotifyMatched(riderPhone, driverName string) {
	n.send(riderPhone, fmt.Sprintf("Your driver %s is on the way.", driverName))
}

// NotifyNoDrivers tells the rider the search was exhausted.
func (n *Notifier) NotifyNoDrivers(riderPhone string) {
	n.send(riderPhone, "No drivers are available right now. Please try again shortly.")
}

func (n *Notifier) send(to, body string) {
	if n == nil || n.sms == nil || to == "" {
		return
	}
	if _, err := n.sms.SendSMS(to, body); err != nil {
		logger.Error("failed to send sms notification", zap.String("to", to), zap.Error(err))
	}
}
