package repository

import (
	"context"

	"paygate/internal/model"
)

// PaymentRepository defines data access for payments using SQL queries
// only. No business logic here — strictly persistence operations. The
// application layer depends on this interface; concrete engines live in
// subpackages (dependency inversion).
type PaymentRepository interface {
	// Create inserts a new payment row and returns the stored record.
	// A reference collision surfaces as ErrDuplicate.
	Create(ctx context.Context, p *model.Payment) (*model.Payment, error)

	// FindByID returns a payment by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Payment, error)

	// FindByProviderTrxID returns the payment that owns the given provider
	// transaction id, or sql.ErrNoRows. Used by webhook reconciliation.
	FindByProviderTrxID(ctx context.Context, trxID string) (*model.Payment, error)

	// List returns a page of payments (newest first) and the total row
	// count for the same filter.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Payment], error)

	// Update persists the mutable fields of p guarded by a compare-and-set
	// on the previous status. When the row no longer carries prev (a
	// concurrent writer won), it returns ErrStale and writes nothing.
	Update(ctx context.Context, p *model.Payment, prev model.Status) error
}

// PageQuery holds limit/offset pagination parameters plus an optional
// status filter (empty means all).
type PageQuery struct {
	Limit  int
	Offset int
	Status string
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
