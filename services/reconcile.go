package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReconcileStore journals balance credits that could not be applied after
// a payment already succeeded. The ledger writes an entry the moment the
// gap opens; the worker below retries until the credit lands. The journal
// is the guarantee that a Success transaction with no matching credit is
// always detectable.

const reconcileKeyPrefix = "reconcile:credit:"

type PendingCredit struct {
	TransactionID string
	UserID        string
	Amount        int64
	RecordedAt    time.Time

	// Applied means the credit already landed and only the journal
	// entry's removal is still outstanding.
	Applied bool
}

type ReconcileStore struct {
	redis *redis.Client
}

func NewReconcileStore(redisClient *redis.Client) *ReconcileStore {
	return &ReconcileStore{redis: redisClient}
}

func (s *ReconcileStore) key(transactionID string) string {
	return reconcileKeyPrefix + transactionID
}

// RecordPendingCredit journals a credit that must still be applied for
// transactionID.
func (s *ReconcileStore) RecordPendingCredit(ctx context.Context, transactionID, userID string, amount int64) error {
	if err := s.redis.HSet(ctx, s.key(transactionID), map[string]any{
		"user_id":     userID,
		"amount":      amount,
		"recorded_at": time.Now().Unix(),
	}).Err(); err != nil {
		return fmt.Errorf("record pending credit: %w", err)
	}
	return nil
}

// PendingCredits lists all journaled credits.
func (s *ReconcileStore) PendingCredits(ctx context.Context) ([]PendingCredit, error) {
	keys, err := s.redis.Keys(ctx, reconcileKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list pending credits: %w", err)
	}

	out := make([]PendingCredit, 0, len(keys))
	for _, key := range keys {
		fields, err := s.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read pending credit %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue // resolved between Keys and HGetAll
		}

		amount, _ := strconv.ParseInt(fields["amount"], 10, 64)
		recorded, _ := strconv.ParseInt(fields["recorded_at"], 10, 64)
		out = append(out, PendingCredit{
			TransactionID: strings.TrimPrefix(key, reconcileKeyPrefix),
			UserID:        fields["user_id"],
			Amount:        amount,
			RecordedAt:    time.Unix(recorded, 0),
			Applied:       fields["applied"] == "1",
		})
	}
	return out, nil
}

// MarkApplied flags a journal entry whose credit has landed, so a later
// pass retries only the entry's removal and never credits twice.
func (s *ReconcileStore) MarkApplied(ctx context.Context, transactionID string) error {
	if err := s.redis.HSet(ctx, s.key(transactionID), "applied", "1").Err(); err != nil {
		return fmt.Errorf("mark credit applied: %w", err)
	}
	return nil
}

// Resolve removes a journal entry after the credit has been applied.
func (s *ReconcileStore) Resolve(ctx context.Context, transactionID string) error {
	if err := s.redis.Del(ctx, s.key(transactionID)).Err(); err != nil {
		return fmt.Errorf("resolve pending credit: %w", err)
	}
	return nil
}

// ReconcileWorker periodically retries journaled credits.
type ReconcileWorker struct {
	store    *ReconcileStore
	balances *BalanceService
	interval time.Duration
}

func NewReconcileWorker(store *ReconcileStore, balances *BalanceService, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileWorker{store: store, balances: balances, interval: interval}
}

func (w *ReconcileWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	pending, err := w.store.PendingCredits(ctx)
	if err != nil {
		slog.Error("reconcile: listing pending credits failed", "error", err)
		return
	}

	for _, credit := range pending {
		if !credit.Applied {
			if _, err := w.balances.AddFunds(ctx, credit.UserID, credit.Amount); err != nil {
				slog.Error("reconcile: credit retry failed",
					"transaction_id", credit.TransactionID,
					"user_id", credit.UserID,
					"error", err,
				)
				continue
			}
			if err := w.store.MarkApplied(ctx, credit.TransactionID); err != nil {
				// The credit landed unmarked; if the removal below also
				// fails, the next pass would credit twice, so be loud.
				slog.Error("reconcile: entry not marked applied after credit",
					"transaction_id", credit.TransactionID,
					"error", err,
				)
			}
		}
		if err := w.store.Resolve(ctx, credit.TransactionID); err != nil {
			// The entry survives marked applied; the next pass retries
			// only the removal.
			slog.Error("reconcile: entry not cleared after credit",
				"transaction_id", credit.TransactionID,
				"error", err,
			)
			continue
		}
		slog.Info("reconcile: pending credit applied",
			"transaction_id", credit.TransactionID,
			"user_id", credit.UserID,
			"amount", credit.Amount,
		)
	}
}
