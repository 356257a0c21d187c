package repository

import (
	"context"

	"eventsphere/models"
)

// Find methods return (nil, nil) when no row matches; callers decide
// whether a missing row is an error.

type TicketRepository interface {
	Save(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error)
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	FindByEventID(ctx context.Context, eventID string) ([]*models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error)
	Delete(ctx context.Context, id string) error

	// UpdateQuota writes only the quota and sold columns. Used on the
	// allocation fast path where the status does not change.
	UpdateQuota(ctx context.Context, id string, quota, sold int) error
}

type TransactionRepository interface {
	Save(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, st models.TransactionStatus) (*models.Transaction, error)
	Delete(ctx context.Context, id string) error
}

type BalanceRepository interface {
	Save(ctx context.Context, balance *models.Balance) (*models.Balance, error)
	FindByUserID(ctx context.Context, userID string) (*models.Balance, error)
}
