package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// pspClient is the mock-PSP boundary: process_payment calls it for
// card/wallet charges and always gets a succeeded PaymentIntent back. The
// result is shaped like a real Stripe charge so the call site reads like a
// production integration, but no network call or stripe.Key is ever used.
type pspClient interface {
	Charge(ctx context.Context, amountCents int64, currency string) (*stripe.PaymentIntent, error)
}

// MockPSPClient synthesizes a succeeded PaymentIntent locally.
type MockPSPClient struct{}

func NewMockPSPClient() *MockPSPClient {
	return &MockPSPClient{}
}

func (c *MockPSPClient) Charge(ctx context.Context, amountCents int64, currency string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{
		ID:       "pi_mock_" + uuid.New().String(),
		Amount:   amountCents,
		Currency: stripe.Currency(currency),
		Status:   stripe.PaymentIntentStatusSucceeded,
	}, nil
}
