// Package model contains the domain layer: the Payment entity, the Money
// value object and the Status enum. It is a pure domain package with no
// database or transport dependencies, so it can be used across layers
// without coupling to persistence.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment is the aggregate root of this service. It is an entity: its ID
// is assigned once and persists across every attribute change; all state
// changes go through the Mark* methods so the lifecycle rules in status.go
// hold everywhere.
type Payment struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	CustomerID    string    `json:"customer_id"`
	Amount        Money     `json:"amount"`
	Status        Status    `json:"status"`
	ProviderTrxID string    `json:"provider_trx_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	ReceiptPath   string    `json:"receipt_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewPayment creates a pending payment with a fresh identity. Reference is
// the caller's idempotency key; field presence is validated by the
// application layer, the domain only enforces a positive amount.
func NewPayment(reference, customerID string, amount Money) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	now := time.Now().UTC()
	return &Payment{
		ID:         uuid.NewString(),
		Reference:  reference,
		CustomerID: customerID,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (p *Payment) transition(next Status) error {
	if !p.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkAuthorized records a successful authorization and the provider's
// transaction id.
func (p *Payment) MarkAuthorized(providerTrxID string) error {
	if err := p.transition(StatusAuthorized); err != nil {
		return err
	}
	p.ProviderTrxID = providerTrxID
	return nil
}

// MarkFailed records a terminal decline with the provider's reason.
func (p *Payment) MarkFailed(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// MarkCaptured records a successful capture.
func (p *Payment) MarkCaptured() error {
	return p.transition(StatusCaptured)
}

// MarkRefunded records a successful refund.
func (p *Payment) MarkRefunded() error {
	return p.transition(StatusRefunded)
}

// AttachReceipt records where the archived receipt lives in object storage.
func (p *Payment) AttachReceipt(path string) {
	p.ReceiptPath = path
	p.UpdatedAt = time.Now().UTC()
}
