package models

import (
	"time"

	"eventsphere/status"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionSuccess  TransactionStatus = "success"
	TransactionFailed   TransactionStatus = "failed"
	TransactionRefunded TransactionStatus = "refunded"
)

type Transaction struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	TicketID          string            `json:"ticket_id,omitempty"`
	Amount            int64             `json:"amount"` // minor units; negative for withdrawals
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description"`
	PaymentMethod     string            `json:"payment_method"` // qr_code, credit_card, bank_transfer, balance
	ExternalReference string            `json:"external_reference,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func NewTransaction(userID, ticketID string, amount int64, description, paymentMethod string) *Transaction {
	now := time.Now()
	return &Transaction{
		UserID:        userID,
		TicketID:      ticketID,
		Amount:        amount,
		Status:        TransactionPending,
		Description:   description,
		PaymentMethod: paymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Process finalizes a pending transaction from the gateway outcome.
func (t *Transaction) Process(success bool, externalReference string) {
	if success {
		t.Status = TransactionSuccess
	} else {
		t.Status = TransactionFailed
	}
	t.ExternalReference = externalReference
	t.UpdatedAt = time.Now()
}

// Refund moves a successful transaction to refunded. Any other starting
// state is rejected.
func (t *Transaction) Refund() error {
	if t.Status != TransactionSuccess {
		return status.ErrRefundNotAllowed
	}
	t.Status = TransactionRefunded
	t.UpdatedAt = time.Now()
	return nil
}

// IsFinalized reports whether the transaction left the pending state.
// Success, failed and refunded are terminal for processing purposes;
// only success may still transition to refunded.
func (t *Transaction) IsFinalized() bool {
	switch t.Status {
	case TransactionSuccess, TransactionFailed, TransactionRefunded:
		return true
	}
	return false
}
