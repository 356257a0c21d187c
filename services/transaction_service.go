package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventsphere/gateway"
	"eventsphere/models"
	"eventsphere/monitoring"
	"eventsphere/repository"
	"eventsphere/status"
	"eventsphere/utils"
)

// TransactionService owns the payment state machine and coordinates the
// balance store and payment gateway for compound operations. State
// transitions are guarded by a per-transaction lock, so two concurrent
// ProcessPayment or Refund calls cannot both act on the pre-transition
// state: one wins, the other sees ErrAlreadyFinalized.
type TransactionService struct {
	repo      repository.TransactionRepository
	balances  *BalanceService
	gateway   gateway.PaymentGateway
	reconcile *ReconcileStore // nil when no journal is configured
	locks     *utils.KeyMutex
}

func NewTransactionService(
	repo repository.TransactionRepository,
	balances *BalanceService,
	pg gateway.PaymentGateway,
	reconcile *ReconcileStore,
) *TransactionService {
	return &TransactionService{
		repo:      repo,
		balances:  balances,
		gateway:   pg,
		reconcile: reconcile,
		locks:     utils.NewKeyMutex(),
	}
}

// CreateTransaction records a pending charge. Charge amounts must be
// positive; withdrawals are recorded internally by WithdrawFunds.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID, ticketID string, amount int64, description, paymentMethod string) (*models.Transaction, error) {
	if userID == "" {
		return nil, status.InvalidInput("user id is required")
	}
	if amount <= 0 {
		return nil, status.InvalidInput("transaction amount must be positive")
	}

	return s.repo.Save(ctx, models.NewTransaction(userID, ticketID, amount, description, paymentMethod))
}

// ProcessPayment finalizes a pending transaction. When an external
// reference is supplied it is trusted as a successful confirmation;
// otherwise the gateway decides. Re-processing a finalized transaction
// is an error, never a silent no-op, so double-processing stays
// detectable.
func (s *TransactionService) ProcessPayment(ctx context.Context, transactionID, externalReference string) (*models.Transaction, error) {
	s.locks.Lock(transactionID)
	defer s.locks.Unlock(transactionID)

	tx, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, status.NotFound("transaction")
	}
	if tx.IsFinalized() {
		monitoring.TrackPayment("process", "already_finalized")
		return nil, status.ErrAlreadyFinalized
	}

	if externalReference != "" {
		tx.Process(true, externalReference)
	} else {
		ok, ref, err := s.gateway.ProcessPayment(ctx, tx)
		if err != nil {
			// gateway failure leaves the transaction pending
			monitoring.TrackPayment("process", "gateway_error")
			return nil, fmt.Errorf("payment gateway: %w", err)
		}
		tx.Process(ok, ref)
	}

	saved, err := s.repo.Save(ctx, tx)
	if err != nil {
		return nil, err
	}

	monitoring.TrackPayment("process", string(saved.Status))
	return saved, nil
}

// ConsumeConfirmations finalizes transactions from asynchronous gateway
// confirmations. The provider reference is trusted the same way a
// caller-supplied external reference is. Returns when the channel closes
// or the context is cancelled.
func (s *TransactionService) ConsumeConfirmations(ctx context.Context, confirmations <-chan *gateway.Confirmation) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-confirmations:
			if !ok {
				return
			}
			if _, err := s.ProcessPayment(ctx, c.TransactionID, c.RefID); err != nil {
				slog.Error("payment confirmation not applied",
					"transaction_id", c.TransactionID,
					"ref", c.RefID,
					"error", err,
				)
			}
		}
	}
}

// ValidatePayment reports whether the transaction completed successfully.
func (s *TransactionService) ValidatePayment(ctx context.Context, transactionID string) (bool, error) {
	tx, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, status.NotFound("transaction")
	}
	return tx.Status == models.TransactionSuccess, nil
}

// Refund moves a successful transaction to refunded.
func (s *TransactionService) Refund(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.locks.Lock(transactionID)
	defer s.locks.Unlock(transactionID)

	tx, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, status.NotFound("transaction")
	}

	if err := tx.Refund(); err != nil {
		monitoring.TrackPayment("refund", "rejected")
		return nil, err
	}

	saved, err := s.repo.Save(ctx, tx)
	if err != nil {
		return nil, err
	}

	monitoring.TrackPayment("refund", "refunded")
	return saved, nil
}

// Delete removes a transaction that never got processed. Anything past
// pending is audit history and stays.
func (s *TransactionService) Delete(ctx context.Context, transactionID string) error {
	s.locks.Lock(transactionID)
	defer s.locks.Unlock(transactionID)

	tx, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if tx == nil {
		return status.NotFound("transaction")
	}
	if tx.Status != models.TransactionPending {
		return status.ErrDeleteProcessed
	}

	return s.repo.Delete(ctx, transactionID)
}

func (s *TransactionService) GetByID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, status.NotFound("transaction")
	}
	return tx, nil
}

func (s *TransactionService) GetByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	return s.repo.FindByUser(ctx, userID)
}

func (s *TransactionService) GetUserBalance(ctx context.Context, userID string) (*models.Balance, error) {
	return s.balances.GetUserBalance(ctx, userID)
}

// AddFundsToBalance charges the user through the gateway and, on
// success, credits the balance store. When the credit fails after the
// payment already succeeded, the gap is journaled for reconciliation and
// reported via ErrCreditPending; it is never swallowed.
func (s *TransactionService) AddFundsToBalance(ctx context.Context, userID string, amount int64, paymentMethod string) (*models.Transaction, int64, error) {
	if amount <= 0 {
		return nil, 0, status.InvalidInput("amount must be positive")
	}

	tx, err := s.CreateTransaction(ctx, userID, "", amount, "Add funds to balance", paymentMethod)
	if err != nil {
		return nil, 0, err
	}

	processed, err := s.ProcessPayment(ctx, tx.ID, "")
	if err != nil {
		monitoring.TrackPayment("add_funds", "error")
		return nil, 0, err
	}
	if processed.Status != models.TransactionSuccess {
		monitoring.TrackPayment("add_funds", "payment_failed")
		return processed, 0, errors.New("payment processing failed")
	}

	total, err := s.balances.AddFunds(ctx, userID, amount)
	if err != nil {
		monitoring.TrackPayment("add_funds", "credit_pending")
		if s.reconcile != nil {
			if jerr := s.reconcile.RecordPendingCredit(ctx, processed.ID, userID, amount); jerr != nil {
				slog.Error("add funds: credit failed and journaling failed",
					"transaction_id", processed.ID,
					"credit_error", err,
					"journal_error", jerr,
				)
				return processed, 0, fmt.Errorf("%w: credit failed (%v) and journaling failed (%v)", status.ErrCreditPending, err, jerr)
			}
		} else {
			slog.Error("add funds: credit failed with no reconcile journal configured",
				"transaction_id", processed.ID,
				"error", err,
			)
		}
		return processed, 0, fmt.Errorf("%w: %v", status.ErrCreditPending, err)
	}

	monitoring.TrackPayment("add_funds", "success")
	return processed, total, nil
}

// WithdrawFunds debits the user's balance, recording the movement as a
// transaction with a negative amount. The pre-check is advisory and
// fails fast without creating anything; the authoritative check and
// debit are one atomic step inside the balance store, so a racing
// withdrawal past the same funds loses and its transaction is recorded
// failed.
func (s *TransactionService) WithdrawFunds(ctx context.Context, userID string, amount int64, description string) (*models.Transaction, int64, error) {
	if amount <= 0 {
		return nil, 0, status.InvalidInput("amount must be positive")
	}

	balance, err := s.balances.GetOrCreateBalance(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if balance.Amount < amount {
		monitoring.TrackPayment("withdraw", "insufficient_funds")
		return nil, 0, status.ErrInsufficientFunds
	}

	tx, err := s.repo.Save(ctx, models.NewTransaction(userID, "", -amount, description, "balance"))
	if err != nil {
		return nil, 0, err
	}

	total, err := s.balances.WithdrawFunds(ctx, userID, amount)
	if err != nil {
		// Lost a race since the advisory check. The transaction stays as
		// a failed audit record.
		if _, uerr := s.repo.UpdateStatus(ctx, tx.ID, models.TransactionFailed); uerr != nil {
			slog.Error("withdraw: marking transaction failed", "transaction_id", tx.ID, "error", uerr)
		}
		monitoring.TrackPayment("withdraw", "insufficient_funds")
		return nil, 0, err
	}

	processed, err := s.repo.UpdateStatus(ctx, tx.ID, models.TransactionSuccess)
	if err != nil {
		return nil, 0, err
	}

	monitoring.TrackPayment("withdraw", "success")
	return processed, total, nil
}
