package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "authorized", "captured", "refunded", "failed"} {
		s, err := ParseStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, Status(valid), s)
	}

	_, err := ParseStatus("settled")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAuthorized, true},
		{StatusPending, StatusFailed, true},
		{StatusAuthorized, StatusCaptured, true},
		{StatusCaptured, StatusRefunded, true},

		{StatusPending, StatusCaptured, false},
		{StatusPending, StatusRefunded, false},
		{StatusAuthorized, StatusFailed, false},
		{StatusAuthorized, StatusRefunded, false},
		{StatusCaptured, StatusFailed, false},
		{StatusRefunded, StatusPending, false},
		{StatusFailed, StatusAuthorized, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func mustMoney(t *testing.T, decimal, currency string) Money {
	t.Helper()
	m, err := ParseMoney(decimal, currency)
	require.NoError(t, err)
	return m
}

func TestNewPayment(t *testing.T) {
	amount := mustMoney(t, "150.75", "USD")

	p, err := NewPayment("order-42", "cust-1", amount)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "order-42", p.Reference)
	assert.Equal(t, StatusPending, p.Status)
	assert.True(t, amount.Equal(p.Amount))
	assert.False(t, p.CreatedAt.IsZero())

	zero, err := NewMoney(0, "USD")
	require.NoError(t, err)
	_, err = NewPayment("order-43", "cust-1", zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPayment_Lifecycle(t *testing.T) {
	p, err := NewPayment("order-42", "cust-1", mustMoney(t, "10.00", "USD"))
	require.NoError(t, err)
	id := p.ID

	require.NoError(t, p.MarkAuthorized("prov-123"))
	assert.Equal(t, StatusAuthorized, p.Status)
	assert.Equal(t, "prov-123", p.ProviderTrxID)

	require.NoError(t, p.MarkCaptured())
	assert.Equal(t, StatusCaptured, p.Status)

	require.NoError(t, p.MarkRefunded())
	assert.Equal(t, StatusRefunded, p.Status)

	// Identity survives every attribute change.
	assert.Equal(t, id, p.ID)
}

func TestPayment_IllegalTransitions(t *testing.T) {
	p, err := NewPayment("order-42", "cust-1", mustMoney(t, "10.00", "USD"))
	require.NoError(t, err)

	// Cannot capture or refund before authorization.
	assert.ErrorIs(t, p.MarkCaptured(), ErrInvalidTransition)
	assert.ErrorIs(t, p.MarkRefunded(), ErrInvalidTransition)
	assert.Equal(t, StatusPending, p.Status)

	require.NoError(t, p.MarkFailed("card declined"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "card declined", p.FailureReason)

	// Failed is terminal.
	err = p.MarkAuthorized("prov-999")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Empty(t, p.ProviderTrxID)
}
