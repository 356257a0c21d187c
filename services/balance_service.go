package services

import (
	"context"
	"time"

	"eventsphere/models"
	"eventsphere/monitoring"
	"eventsphere/repository"
	"eventsphere/status"
	"eventsphere/utils"
)

// BalanceService owns per-user stored funds. Every read-modify-write
// path runs under a per-user lock, so the amount can never go negative
// and concurrent operations on the same user serialize while different
// users proceed independently.
type BalanceService struct {
	repo  repository.BalanceRepository
	locks *utils.KeyMutex
}

func NewBalanceService(repo repository.BalanceRepository) *BalanceService {
	return &BalanceService{
		repo:  repo,
		locks: utils.NewKeyMutex(),
	}
}

// GetUserBalance returns the stored balance, or nil when the user has
// never held funds.
func (s *BalanceService) GetUserBalance(ctx context.Context, userID string) (*models.Balance, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// GetOrCreateBalance lazily initializes a zero balance for the user.
func (s *BalanceService) GetOrCreateBalance(ctx context.Context, userID string) (*models.Balance, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	return s.getOrCreateLocked(ctx, userID)
}

// getOrCreateLocked must be called with the user's lock held.
func (s *BalanceService) getOrCreateLocked(ctx context.Context, userID string) (*models.Balance, error) {
	balance, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}
	return s.repo.Save(ctx, models.NewBalance(userID))
}

// AddFunds credits the user and returns the new total.
func (s *BalanceService) AddFunds(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, status.InvalidInput("amount must be positive")
	}

	started := time.Now()
	defer func() { monitoring.TrackBalanceOp("add_funds", time.Since(started)) }()

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	balance, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return 0, err
	}

	total, err := balance.AddFunds(amount)
	if err != nil {
		return 0, err
	}
	if _, err := s.repo.Save(ctx, balance); err != nil {
		return 0, err
	}
	return total, nil
}

// WithdrawFunds debits the user and returns the new total. The check and
// the debit happen under the same lock, so two concurrent withdrawals
// can never both spend the same funds.
func (s *BalanceService) WithdrawFunds(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, status.InvalidInput("amount must be positive")
	}

	started := time.Now()
	defer func() { monitoring.TrackBalanceOp("withdraw_funds", time.Since(started)) }()

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	balance, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return 0, err
	}

	total, err := balance.Withdraw(amount)
	if err != nil {
		return 0, err
	}
	if _, err := s.repo.Save(ctx, balance); err != nil {
		return 0, err
	}
	return total, nil
}
