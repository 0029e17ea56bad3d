// Package gateway talks to the external payment provider. It is the
// anti-corruption layer of this service: the provider's wire shapes
// (trx_id, string-typed amounts, SCREAMING status codes) are translated
// into domain types at this boundary and never leak past it.
package gateway

import (
	"context"
	"errors"

	"paygate/internal/model"
)

var (
	// ErrUnavailable reports a transport failure or provider-side outage.
	// Declines are not errors; see Outcome.Approved.
	ErrUnavailable = errors.New("payment provider unavailable")

	// ErrInvalidNotification reports a webhook payload that could not be
	// translated into domain types.
	ErrInvalidNotification = errors.New("invalid provider notification")
)

// Outcome is the domain-shaped result of a provider call.
type Outcome struct {
	// ProviderTrxID is the provider's identifier for the transaction.
	ProviderTrxID string
	// Approved is false when the provider declined the operation.
	Approved bool
	// Reason carries the provider's decline reason, empty on approval.
	Reason string
}

// Notification is a provider webhook translated into domain types: typed
// Money instead of a string amount, lifecycle Status instead of provider
// codes.
type Notification struct {
	ProviderTrxID string
	Amount        model.Money
	Status        model.Status
	Reason        string
}

// PaymentGateway defines the operations the application layer needs from
// the provider. The HTTP implementation lives in this package; tests use
// the mock in gateway/mocks.
type PaymentGateway interface {
	// Authorize places an authorization hold for the payment's amount.
	Authorize(ctx context.Context, p *model.Payment) (*Outcome, error)

	// Capture settles a previously authorized transaction.
	Capture(ctx context.Context, providerTrxID string, amount model.Money) (*Outcome, error)

	// Refund returns a captured amount to the customer.
	Refund(ctx context.Context, providerTrxID string, amount model.Money) (*Outcome, error)
}
