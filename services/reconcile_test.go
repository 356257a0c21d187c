package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsphere/repository"
)

// hsetFields matches an HSET regardless of the order go-redis flattened
// the field map in.
func hsetFields(key string, fields map[string]any) func(expected, actual []interface{}) error {
	return func(_, actual []interface{}) error {
		if len(actual) < 2 || actual[0] != "hset" || actual[1] != key {
			return fmt.Errorf("unexpected command %v", actual)
		}
		got := make(map[any]any)
		for i := 2; i+1 < len(actual); i += 2 {
			got[actual[i]] = actual[i+1]
		}
		for field, want := range fields {
			if got[field] != want {
				return fmt.Errorf("field %s: got %v, want %v", field, got[field], want)
			}
		}
		return nil
	}
}

func TestReconcileStore_RecordPendingCredit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)

	mock.CustomMatch(hsetFields("reconcile:credit:tx-1", map[string]any{
		"user_id": "user-1",
		"amount":  int64(500),
	})).ExpectHSet("reconcile:credit:tx-1",
		// Placeholder args: hsetFields does the real matching, but redismock
		// compares argument counts before invoking the custom matcher, so the
		// expectation must have the same arity as the actual HSET.
		"user_id", "user-1", "amount", int64(500), "recorded_at", int64(0),
	).SetVal(3)

	err := store.RecordPendingCredit(context.Background(), "tx-1", "user-1", 500)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileStore_PendingCredits(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)

	recorded := time.Now().Add(-time.Minute).Unix()
	mock.ExpectKeys("reconcile:credit:*").SetVal([]string{
		"reconcile:credit:tx-1",
		"reconcile:credit:tx-2",
	})
	mock.ExpectHGetAll("reconcile:credit:tx-1").SetVal(map[string]string{
		"user_id":     "user-1",
		"amount":      "500",
		"recorded_at": fmt.Sprint(recorded),
	})
	// tx-2 was resolved between Keys and HGetAll
	mock.ExpectHGetAll("reconcile:credit:tx-2").SetVal(map[string]string{})

	pending, err := store.PendingCredits(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tx-1", pending[0].TransactionID)
	assert.Equal(t, "user-1", pending[0].UserID)
	assert.Equal(t, int64(500), pending[0].Amount)
	assert.Equal(t, recorded, pending[0].RecordedAt.Unix())
	assert.False(t, pending[0].Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileStore_Resolve(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)

	mock.ExpectDel("reconcile:credit:tx-1").SetVal(1)

	require.NoError(t, store.Resolve(context.Background(), "tx-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileWorker_AppliesAndClearsCredits(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)
	balances := NewBalanceService(repository.NewMemoryBalanceRepository())
	worker := NewReconcileWorker(store, balances, time.Minute)
	ctx := context.Background()

	mock.ExpectKeys("reconcile:credit:*").SetVal([]string{"reconcile:credit:tx-1"})
	mock.ExpectHGetAll("reconcile:credit:tx-1").SetVal(map[string]string{
		"user_id":     "user-1",
		"amount":      "750",
		"recorded_at": fmt.Sprint(time.Now().Unix()),
	})
	mock.ExpectHSet("reconcile:credit:tx-1", "applied", "1").SetVal(1)
	mock.ExpectDel("reconcile:credit:tx-1").SetVal(1)

	worker.runOnce(ctx)

	balance, err := balances.GetUserBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), balance.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileWorker_EmptyJournalIsANoOp(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)
	balances := NewBalanceService(repository.NewMemoryBalanceRepository())
	worker := NewReconcileWorker(store, balances, time.Minute)

	mock.ExpectKeys("reconcile:credit:*").SetVal([]string{})

	worker.runOnce(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileWorker_CreditsOnceAcrossRetries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewReconcileStore(db)
	balances := NewBalanceService(repository.NewMemoryBalanceRepository())
	worker := NewReconcileWorker(store, balances, time.Minute)
	ctx := context.Background()

	recorded := fmt.Sprint(time.Now().Unix())

	// First pass: the credit lands and gets marked, but the removal fails.
	mock.ExpectKeys("reconcile:credit:*").SetVal([]string{"reconcile:credit:tx-1"})
	mock.ExpectHGetAll("reconcile:credit:tx-1").SetVal(map[string]string{
		"user_id":     "user-1",
		"amount":      "300",
		"recorded_at": recorded,
	})
	mock.ExpectHSet("reconcile:credit:tx-1", "applied", "1").SetVal(1)
	mock.ExpectDel("reconcile:credit:tx-1").SetErr(errors.New("connection reset"))

	worker.runOnce(ctx)

	balance, err := balances.GetUserBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Amount)

	// Second pass: the surviving entry is marked applied, so only the
	// removal is retried. No second credit.
	mock.ExpectKeys("reconcile:credit:*").SetVal([]string{"reconcile:credit:tx-1"})
	mock.ExpectHGetAll("reconcile:credit:tx-1").SetVal(map[string]string{
		"user_id":     "user-1",
		"amount":      "300",
		"recorded_at": recorded,
		"applied":     "1",
	})
	mock.ExpectDel("reconcile:credit:tx-1").SetVal(1)

	worker.runOnce(ctx)

	balance, err = balances.GetUserBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Amount, "an applied entry must not credit again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewReconcileWorker_DefaultsInterval(t *testing.T) {
	worker := NewReconcileWorker(nil, nil, 0)
	assert.Equal(t, time.Minute, worker.interval)
}
