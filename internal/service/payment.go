package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paygate/internal/gateway"
	"paygate/internal/model"
	"paygate/internal/repository"
	"paygate/internal/storage"
	"paygate/internal/util"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("payment not found")

	// ErrDuplicateReference is returned when a merchant reuses a reference;
	// the original payment is the authoritative one.
	ErrDuplicateReference = errors.New("reference already used")

	// ErrInvalidState is returned when an operation is requested in a
	// lifecycle state that does not allow it.
	ErrInvalidState = errors.New("operation not allowed in current state")

	ErrPaymentDeclined    = errors.New("payment declined by provider")
	ErrRefundDeclined     = errors.New("refund declined by provider")
	ErrGatewayUnavailable = errors.New("payment provider unavailable")

	ErrReceiptNotReady = errors.New("receipt not available yet")

	ErrUnknownProviderTrx = errors.New("unknown provider transaction")
	ErrAmountMismatch     = errors.New("notification amount does not match payment")

	// ErrConflict is returned when a concurrent writer changed the payment
	// between read and write; the caller should re-read and retry.
	ErrConflict = errors.New("payment was modified concurrently")
)

const (
	defaultListLimit = 10
	receiptURLTTL    = 15 * time.Minute
)

// CreatePaymentRequest is the inbound DTO for creating a payment. Amount
// crosses the API boundary as a decimal string and is converted to the
// Money value object before it reaches the domain.
type CreatePaymentRequest struct {
	Reference  string `json:"reference" validate:"required,max=64"`
	CustomerID string `json:"customer_id" validate:"required,max=64"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency" validate:"required,len=3"`
}

// PaymentListResult is the service-level DTO for paginated payments.
type PaymentListResult struct {
	Items []model.Payment `json:"data"`
	Total int             `json:"total"`
}

// PaymentService defines the use cases of the payment lifecycle.
type PaymentService interface {
	// Create registers a new pending payment. A reused reference returns
	// ErrDuplicateReference.
	Create(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error)

	// Get returns a single payment by its ID.
	Get(ctx context.Context, id string) (*model.Payment, error)

	// List returns payments using limit/offset, optionally filtered by
	// lifecycle status, plus a total count for the same filter.
	List(ctx context.Context, limit, offset int, status string) (*PaymentListResult, error)

	// Authorize asks the provider to place a hold for the payment amount.
	// Only pending payments can be authorized; a decline marks the payment
	// failed and returns ErrPaymentDeclined.
	Authorize(ctx context.Context, id string) (*model.Payment, error)

	// Capture settles an authorized payment, archives a JSON receipt in
	// object storage, and rolls the receipt back if the DB update fails.
	Capture(ctx context.Context, id string) (*model.Payment, error)

	// Refund returns a captured amount. A provider decline leaves the
	// payment captured and returns ErrRefundDeclined.
	Refund(ctx context.Context, id string) (*model.Payment, error)

	// ReceiptURL returns a presigned, time-limited download URL for the
	// archived receipt, or ErrReceiptNotReady before capture.
	ReceiptURL(ctx context.Context, id string) (string, error)

	// ApplyProviderNotification reconciles an asynchronous provider
	// notification (already verified by the webhook middleware) with the
	// stored payment. Redelivery of an already-applied status is a no-op.
	ApplyProviderNotification(ctx context.Context, payload []byte) (*model.Payment, error)
}

// paymentService is a concrete implementation of PaymentService.
type paymentService struct {
	repo  repository.PaymentRepository
	gw    gateway.PaymentGateway
	store storage.Storage
	log   *slog.Logger
}

// NewPaymentService constructs a new PaymentService.
func NewPaymentService(repo repository.PaymentRepository, gw gateway.PaymentGateway, store storage.Storage) PaymentService {
	return &paymentService{
		repo:  repo,
		gw:    gw,
		store: store,
		log:   util.GetLogger(),
	}
}

func (s *paymentService) Create(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error) {
	amount, err := model.ParseMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	p, err := model.NewPayment(req.Reference, req.CustomerID, amount)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Create(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	s.log.Info("payment_created",
		"payment_id", stored.ID,
		"reference", stored.Reference,
		"amount", stored.Amount.String(),
	)
	return stored, nil
}

func (s *paymentService) Get(ctx context.Context, id string) (*model.Payment, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *paymentService) List(ctx context.Context, limit, offset int, status string) (*PaymentListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if status != "" {
		if _, err := model.ParseStatus(status); err != nil {
			return nil, err
		}
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset, Status: status})
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *paymentService) Authorize(ctx context.Context, id string) (*model.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: cannot authorize %s payment", ErrInvalidState, p.Status)
	}

	outcome, err := s.gw.Authorize(ctx, p)
	if err != nil {
		// Outages leave the payment pending so the merchant can retry.
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, err
	}

	if !outcome.Approved {
		if err := p.MarkFailed(outcome.Reason); err != nil {
			return nil, err
		}
		if err := s.update(ctx, p, model.StatusPending); err != nil {
			return nil, err
		}
		s.log.Info("payment_declined",
			"payment_id", p.ID,
			"reason", outcome.Reason,
		)
		return nil, ErrPaymentDeclined
	}

	if err := p.MarkAuthorized(outcome.ProviderTrxID); err != nil {
		return nil, err
	}
	if err := s.update(ctx, p, model.StatusPending); err != nil {
		return nil, err
	}

	s.log.Info("payment_authorized",
		"payment_id", p.ID,
		"provider_trx_id", p.ProviderTrxID,
	)
	return p, nil
}

func (s *paymentService) Capture(ctx context.Context, id string) (*model.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusAuthorized {
		return nil, fmt.Errorf("%w: cannot capture %s payment", ErrInvalidState, p.Status)
	}

	outcome, err := s.gw.Capture(ctx, p.ProviderTrxID, p.Amount)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, err
	}

	// A declined capture leaves the hold in place; the merchant may retry.
	if !outcome.Approved {
		s.log.Info("capture_declined",
			"payment_id", p.ID,
			"reason", outcome.Reason,
		)
		return nil, ErrPaymentDeclined
	}

	key, err := s.archiveReceipt(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("archive receipt: %w", err)
	}

	if err := p.MarkCaptured(); err != nil {
		return nil, err
	}
	p.AttachReceipt(key)

	if err := s.update(ctx, p, model.StatusAuthorized); err != nil {
		// Rollback: the receipt must not outlive a failed capture record.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, err
	}

	s.log.Info("payment_captured",
		"payment_id", p.ID,
		"receipt_path", p.ReceiptPath,
	)
	return p, nil
}

func (s *paymentService) Refund(ctx context.Context, id string) (*model.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusCaptured {
		return nil, fmt.Errorf("%w: cannot refund %s payment", ErrInvalidState, p.Status)
	}

	outcome, err := s.gw.Refund(ctx, p.ProviderTrxID, p.Amount)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, err
	}

	// A declined refund changes nothing: the payment stays captured.
	if !outcome.Approved {
		s.log.Info("refund_declined",
			"payment_id", p.ID,
			"reason", outcome.Reason,
		)
		return nil, ErrRefundDeclined
	}

	if err := p.MarkRefunded(); err != nil {
		return nil, err
	}
	if err := s.update(ctx, p, model.StatusCaptured); err != nil {
		return nil, err
	}

	s.log.Info("payment_refunded", "payment_id", p.ID)
	return p, nil
}

func (s *paymentService) ReceiptURL(ctx context.Context, id string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.ReceiptPath == "" {
		return "", ErrReceiptNotReady
	}
	return s.store.PresignGet(ctx, p.ReceiptPath, receiptURLTTL)
}

func (s *paymentService) ApplyProviderNotification(ctx context.Context, payload []byte) (*model.Payment, error) {
	n, err := gateway.ParseNotification(payload)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByProviderTrxID(ctx, n.ProviderTrxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownProviderTrx
		}
		return nil, err
	}

	if !p.Amount.Equal(n.Amount) {
		return nil, fmt.Errorf("%w: have %s, notification says %s",
			ErrAmountMismatch, p.Amount, n.Amount)
	}

	// Providers redeliver notifications; an already-applied status is fine.
	if p.Status == n.Status {
		return p, nil
	}

	prev := p.Status
	switch n.Status {
	case model.StatusAuthorized:
		err = p.MarkAuthorized(n.ProviderTrxID)
	case model.StatusCaptured:
		err = p.MarkCaptured()
	case model.StatusFailed:
		err = p.MarkFailed(n.Reason)
	case model.StatusRefunded:
		err = p.MarkRefunded()
	default:
		err = fmt.Errorf("%w: no transition for %s", gateway.ErrInvalidNotification, n.Status)
	}
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return nil, err
	}

	if err := s.update(ctx, p, prev); err != nil {
		return nil, err
	}

	s.log.Info("notification_applied",
		"payment_id", p.ID,
		"provider_trx_id", n.ProviderTrxID,
		"from", prev,
		"to", p.Status,
	)
	return p, nil
}

// update persists p guarded by the status it was read with, translating a
// lost compare-and-set into ErrConflict.
func (s *paymentService) update(ctx context.Context, p *model.Payment, prev model.Status) error {
	if err := s.repo.Update(ctx, p, prev); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// receipt is the document archived in object storage after a capture.
type receipt struct {
	PaymentID     string      `json:"payment_id"`
	Reference     string      `json:"reference"`
	CustomerID    string      `json:"customer_id"`
	Amount        model.Money `json:"amount"`
	ProviderTrxID string      `json:"provider_trx_id"`
	CapturedAt    time.Time   `json:"captured_at"`
}

// archiveReceipt writes the capture receipt for p and returns its object key.
func (s *paymentService) archiveReceipt(ctx context.Context, p *model.Payment) (string, error) {
	key := receiptKey(p.ID)

	body, err := json.Marshal(receipt{
		PaymentID:     p.ID,
		Reference:     p.Reference,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		ProviderTrxID: p.ProviderTrxID,
		CapturedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	_, err = s.store.Put(ctx, key, bytes.NewReader(body), storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"payment-id": p.ID,
			"reference":  p.Reference,
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func receiptKey(paymentID string) string {
	return "receipts/" + paymentID + ".json"
}
