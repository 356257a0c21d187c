package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventsphere/models"
	"eventsphere/status"
	"eventsphere/utils"
)

// In-memory adapters. These back the default deployment and the test
// suite; the dbx adapters replace them when a database is configured.
// Values are copied on the way in and out so callers never share struct
// memory with the store.

type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]models.Ticket
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]models.Ticket)}
}

func (r *MemoryTicketRepository) Save(_ context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = utils.NewID()
	}
	r.tickets[ticket.ID] = *ticket

	saved := *ticket
	return &saved, nil
}

func (r *MemoryTicketRepository) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	found := t
	return &found, nil
}

func (r *MemoryTicketRepository) FindByEventID(_ context.Context, eventID string) ([]*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Ticket
	for _, t := range r.tickets {
		if t.EventID == eventID {
			found := t
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[ticket.ID]; !ok {
		return nil, status.NotFound("ticket")
	}
	r.tickets[ticket.ID] = *ticket

	updated := *ticket
	return &updated, nil
}

func (r *MemoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[id]; !ok {
		return status.NotFound("ticket")
	}
	delete(r.tickets, id)
	return nil
}

func (r *MemoryTicketRepository) UpdateQuota(_ context.Context, id string, quota, sold int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return status.NotFound("ticket")
	}
	t.Quota = quota
	t.Sold = sold
	t.UpdatedAt = time.Now()
	r.tickets[id] = t
	return nil
}

type MemoryTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]models.Transaction
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{transactions: make(map[string]models.Transaction)}
}

func (r *MemoryTransactionRepository) Save(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == "" {
		tx.ID = utils.NewID()
	}
	r.transactions[tx.ID] = *tx

	saved := *tx
	return &saved, nil
}

func (r *MemoryTransactionRepository) FindByID(_ context.Context, id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	found := tx
	return &found, nil
}

func (r *MemoryTransactionRepository) FindByUser(_ context.Context, userID string) ([]*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			found := tx
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTransactionRepository) UpdateStatus(_ context.Context, id string, st models.TransactionStatus) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, status.NotFound("transaction")
	}
	tx.Status = st
	tx.UpdatedAt = time.Now()
	r.transactions[id] = tx

	updated := tx
	return &updated, nil
}

func (r *MemoryTransactionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transactions[id]; !ok {
		return status.NotFound("transaction")
	}
	delete(r.transactions, id)
	return nil
}

type MemoryBalanceRepository struct {
	mu       sync.RWMutex
	balances map[string]models.Balance // keyed by user id
}

func NewMemoryBalanceRepository() *MemoryBalanceRepository {
	return &MemoryBalanceRepository{balances: make(map[string]models.Balance)}
}

func (r *MemoryBalanceRepository) Save(_ context.Context, balance *models.Balance) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if balance.ID == "" {
		balance.ID = utils.NewID()
	}
	r.balances[balance.UserID] = *balance

	saved := *balance
	return &saved, nil
}

func (r *MemoryBalanceRepository) FindByUserID(_ context.Context, userID string) (*models.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.balances[userID]
	if !ok {
		return nil, nil
	}
	found := b
	return &found, nil
}
