package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsphere/status"
)

func TestNewTicket_Defaults(t *testing.T) {
	ticket := NewTicket("event-1", "vip", 50000, 100)

	assert.Equal(t, "event-1", ticket.EventID)
	assert.Equal(t, TicketAvailable, ticket.Status)
	assert.Equal(t, 100, ticket.Quota)
	assert.Equal(t, 0, ticket.Sold)
}

func TestNewTicket_ZeroQuotaStartsSoldOut(t *testing.T) {
	ticket := NewTicket("event-1", "stand", 10000, 0)
	assert.Equal(t, TicketSoldOut, ticket.Status)
}

func TestTicket_SetQuota_KeepsInvariant(t *testing.T) {
	ticket := NewTicket("event-1", "seat", 25000, 10)

	ticket.SetQuota(0)
	assert.Equal(t, TicketSoldOut, ticket.Status)

	ticket.SetQuota(5)
	assert.Equal(t, TicketAvailable, ticket.Status)
}

func TestTicket_SetQuota_ExpiredStaysExpired(t *testing.T) {
	ticket := NewTicket("event-1", "seat", 25000, 10)
	ticket.MarkExpired()

	ticket.SetQuota(50)

	assert.Equal(t, TicketExpired, ticket.Status)
	assert.Equal(t, 50, ticket.Quota)
}

func TestTicket_IsAvailable(t *testing.T) {
	ticket := NewTicket("event-1", "seat", 25000, 10)

	assert.True(t, ticket.IsAvailable(10))
	assert.False(t, ticket.IsAvailable(11))

	ticket.MarkExpired()
	assert.False(t, ticket.IsAvailable(1))
}

func TestTransaction_Process(t *testing.T) {
	tx := NewTransaction("user-1", "", 1000, "Top up", "qr_code")
	require.Equal(t, TransactionPending, tx.Status)
	require.False(t, tx.IsFinalized())

	tx.Process(true, "PG-REF-123")

	assert.Equal(t, TransactionSuccess, tx.Status)
	assert.Equal(t, "PG-REF-123", tx.ExternalReference)
	assert.True(t, tx.IsFinalized())
}

func TestTransaction_ProcessFailure(t *testing.T) {
	tx := NewTransaction("user-1", "", 1000, "Top up", "qr_code")

	tx.Process(false, "")

	assert.Equal(t, TransactionFailed, tx.Status)
	assert.True(t, tx.IsFinalized())
}

func TestTransaction_Refund(t *testing.T) {
	tx := NewTransaction("user-1", "ticket-1", 1000, "Purchase", "credit_card")

	err := tx.Refund()
	require.ErrorIs(t, err, status.ErrRefundNotAllowed)
	assert.Equal(t, TransactionPending, tx.Status)

	tx.Process(true, "PG-REF-1")
	require.NoError(t, tx.Refund())
	assert.Equal(t, TransactionRefunded, tx.Status)

	// Refunded is terminal.
	assert.ErrorIs(t, tx.Refund(), status.ErrRefundNotAllowed)
}

func TestBalance_AddFunds(t *testing.T) {
	b := NewBalance("user-1")

	total, err := b.AddFunds(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)

	_, err = b.AddFunds(0)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
	assert.Equal(t, int64(1000), b.Amount)
}

func TestBalance_Withdraw(t *testing.T) {
	b := NewBalance("user-1")
	_, err := b.AddFunds(1000)
	require.NoError(t, err)

	_, err = b.Withdraw(1500)
	assert.ErrorIs(t, err, status.ErrInsufficientFunds)
	assert.Equal(t, int64(1000), b.Amount)

	total, err := b.Withdraw(400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), total)
}
