package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"paygate/internal/model"
	"paygate/internal/repository"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// PaymentPostgres is a PostgreSQL implementation of
// repository.PaymentRepository. It uses database/sql with parameterized
// queries and contains no business logic.
type PaymentPostgres struct {
	db *sql.DB
}

// NewPaymentPostgres creates a new PaymentPostgres repository.
func NewPaymentPostgres(db *sql.DB) *PaymentPostgres {
	return &PaymentPostgres{db: db}
}

var _ repository.PaymentRepository = (*PaymentPostgres)(nil)

const paymentColumns = `id, reference, customer_id, amount_minor, currency, status, provider_trx_id, failure_reason, receipt_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var (
		p           model.Payment
		amountMinor int64
		currency    string
		status      string
	)
	if err := row.Scan(
		&p.ID,
		&p.Reference,
		&p.CustomerID,
		&amountMinor,
		&currency,
		&status,
		&p.ProviderTrxID,
		&p.FailureReason,
		&p.ReceiptPath,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	amount, err := model.NewMoney(amountMinor, currency)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for payment %s: %w", p.ID, err)
	}
	p.Amount = amount
	p.Status = model.Status(status)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Create inserts a new payment row and returns the stored record.
func (r *PaymentPostgres) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	const q = `
		INSERT INTO payments (id, reference, customer_id, amount_minor, currency, status, provider_trx_id, failure_reason, receipt_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + paymentColumns
	row := r.db.QueryRowContext(ctx, q,
		p.ID,
		p.Reference,
		p.CustomerID,
		p.Amount.Minor(),
		p.Amount.Currency(),
		string(p.Status),
		p.ProviderTrxID,
		p.FailureReason,
		p.ReceiptPath,
		p.CreatedAt,
		p.UpdatedAt,
	)
	out, err := scanPayment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single payment by its ID.
func (r *PaymentPostgres) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRowContext(ctx, q, id))
}

// FindByProviderTrxID fetches the payment that owns a provider transaction
// id. Empty ids never match (rows default to '').
func (r *PaymentPostgres) FindByProviderTrxID(ctx context.Context, trxID string) (*model.Payment, error) {
	if trxID == "" {
		return nil, sql.ErrNoRows
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE provider_trx_id = $1`
	return scanPayment(r.db.QueryRowContext(ctx, q, trxID))
}

// List returns payments using LIMIT/OFFSET pagination and a total count.
// An optional status filter narrows both.
func (r *PaymentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Payment], error) {
	var (
		total int
		rows  *sql.Rows
		err   error
	)

	if pq.Status != "" {
		const qCount = `SELECT COUNT(*) FROM payments WHERE status = $1`
		if err = r.db.QueryRowContext(ctx, qCount, pq.Status).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + paymentColumns + `
			FROM payments
			WHERE status = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Status, pq.Limit, pq.Offset)
	} else {
		const qCount = `SELECT COUNT(*) FROM payments`
		if err = r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + paymentColumns + `
			FROM payments
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Payment]{
		Items: items,
		Total: total,
	}, nil
}

// Update persists the mutable payment fields guarded by a compare-and-set
// on the previous status. Zero affected rows means a concurrent writer
// moved the payment first.
func (r *PaymentPostgres) Update(ctx context.Context, p *model.Payment, prev model.Status) error {
	const q = `
		UPDATE payments
		SET status = $1, provider_trx_id = $2, failure_reason = $3, receipt_path = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	res, err := r.db.ExecContext(ctx, q,
		string(p.Status),
		p.ProviderTrxID,
		p.FailureReason,
		p.ReceiptPath,
		p.UpdatedAt,
		p.ID,
		string(prev),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStale
	}
	return nil
}
