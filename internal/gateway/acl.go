package gateway

import (
	"encoding/json"
	"fmt"

	"paygate/internal/model"
)

// providerTransaction is the provider's wire shape. Field names and types
// are owned by the provider (note trx_id and the string-typed amount);
// translation into domain types happens here and nowhere else.
type providerTransaction struct {
	TrxID    string `json:"trx_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Provider status vocabulary.
const (
	providerStatusAuthorized = "AUTHORIZED"
	providerStatusSettled    = "SETTLED"
	providerStatusDeclined   = "DECLINED"
	providerStatusRefunded   = "REFUNDED"
)

// mapProviderStatus translates the provider's status codes into lifecycle
// states. DECLINED maps to failed; callers decide whether that is terminal
// in their context.
func mapProviderStatus(raw string) (model.Status, error) {
	switch raw {
	case providerStatusAuthorized:
		return model.StatusAuthorized, nil
	case providerStatusSettled:
		return model.StatusCaptured, nil
	case providerStatusDeclined:
		return model.StatusFailed, nil
	case providerStatusRefunded:
		return model.StatusRefunded, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidNotification, raw)
	}
}

// ParseNotification translates a raw provider webhook body into a
// domain-shaped Notification. Anything the domain cannot represent —
// unknown statuses, malformed amounts, a missing trx_id — is rejected at
// this boundary.
func ParseNotification(body []byte) (Notification, error) {
	var tx providerTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if tx.TrxID == "" {
		return Notification{}, fmt.Errorf("%w: missing trx_id", ErrInvalidNotification)
	}

	amount, err := model.ParseMoney(tx.Amount, tx.Currency)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: amount: %v", ErrInvalidNotification, err)
	}

	status, err := mapProviderStatus(tx.Status)
	if err != nil {
		return Notification{}, err
	}

	return Notification{
		ProviderTrxID: tx.TrxID,
		Amount:        amount,
		Status:        status,
		Reason:        tx.Reason,
	}, nil
}
