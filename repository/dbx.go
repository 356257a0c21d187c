package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"

	"eventsphere/models"
	"eventsphere/status"
	"eventsphere/utils"
)

// dbx-backed adapters over the PocketBase database. Timestamps are stored
// as UTC RFC3339 text, matching the collection fields created by the
// migrations.

const timeLayout = "2006-01-02 15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type DbxTicketRepository struct {
	db dbx.Builder
}

func NewDbxTicketRepository(db dbx.Builder) *DbxTicketRepository {
	return &DbxTicketRepository{db: db}
}

type ticketRow struct {
	ID      string `db:"id"`
	EventID string `db:"event_id"`
	Type    string `db:"type"`
	Price   int64  `db:"price"`
	Quota   int    `db:"quota"`
	Sold    int    `db:"sold"`
	Status  string `db:"status"`
	Created string `db:"created"`
	Updated string `db:"updated"`
}

func (r ticketRow) toModel() *models.Ticket {
	return &models.Ticket{
		ID:        r.ID,
		EventID:   r.EventID,
		Type:      r.Type,
		Price:     r.Price,
		Quota:     r.Quota,
		Sold:      r.Sold,
		Status:    models.TicketStatus(r.Status),
		CreatedAt: parseTime(r.Created),
		UpdatedAt: parseTime(r.Updated),
	}
}

func (r *DbxTicketRepository) Save(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	if ticket.ID == "" {
		ticket.ID = utils.NewID()
	}

	_, err := r.db.NewQuery(
		"INSERT INTO tickets (id, event_id, type, price, quota, sold, status, created, updated) "+
			"VALUES ({:id}, {:event_id}, {:type}, {:price}, {:quota}, {:sold}, {:status}, {:created}, {:updated})",
	).Bind(dbx.Params{
		"id":       ticket.ID,
		"event_id": ticket.EventID,
		"type":     ticket.Type,
		"price":    ticket.Price,
		"quota":    ticket.Quota,
		"sold":     ticket.Sold,
		"status":   string(ticket.Status),
		"created":  formatTime(ticket.CreatedAt),
		"updated":  formatTime(ticket.UpdatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, status.Repository("save ticket", err)
	}

	saved := *ticket
	return &saved, nil
}

func (r *DbxTicketRepository) FindByID(ctx context.Context, id string) (*models.Ticket, error) {
	var row ticketRow
	err := r.db.NewQuery("SELECT id, event_id, type, price, quota, sold, status, created, updated FROM tickets WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).WithContext(ctx).One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, status.Repository("find ticket", err)
	}
	return row.toModel(), nil
}

func (r *DbxTicketRepository) FindByEventID(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	var rows []ticketRow
	err := r.db.NewQuery("SELECT id, event_id, type, price, quota, sold, status, created, updated FROM tickets WHERE event_id = {:event_id} ORDER BY created").
		Bind(dbx.Params{"event_id": eventID}).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, status.Repository("find tickets by event", err)
	}

	out := make([]*models.Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *DbxTicketRepository) Update(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	ticket.UpdatedAt = time.Now()

	res, err := r.db.NewQuery(
		"UPDATE tickets SET type = {:type}, price = {:price}, quota = {:quota}, sold = {:sold}, status = {:status}, updated = {:updated} WHERE id = {:id}",
	).Bind(dbx.Params{
		"id":      ticket.ID,
		"type":    ticket.Type,
		"price":   ticket.Price,
		"quota":   ticket.Quota,
		"sold":    ticket.Sold,
		"status":  string(ticket.Status),
		"updated": formatTime(ticket.UpdatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, status.Repository("update ticket", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, status.NotFound("ticket")
	}

	updated := *ticket
	return &updated, nil
}

func (r *DbxTicketRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewQuery("DELETE FROM tickets WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return status.Repository("delete ticket", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.NotFound("ticket")
	}
	return nil
}

func (r *DbxTicketRepository) UpdateQuota(ctx context.Context, id string, quota, sold int) error {
	res, err := r.db.NewQuery(
		"UPDATE tickets SET quota = {:quota}, sold = {:sold}, updated = {:updated} WHERE id = {:id}",
	).Bind(dbx.Params{
		"id":      id,
		"quota":   quota,
		"sold":    sold,
		"updated": formatTime(time.Now()),
	}).WithContext(ctx).Execute()
	if err != nil {
		return status.Repository("update ticket quota", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.NotFound("ticket")
	}
	return nil
}

type DbxTransactionRepository struct {
	db dbx.Builder
}

func NewDbxTransactionRepository(db dbx.Builder) *DbxTransactionRepository {
	return &DbxTransactionRepository{db: db}
}

type transactionRow struct {
	ID                string `db:"id"`
	UserID            string `db:"user_id"`
	TicketID          string `db:"ticket_id"`
	Amount            int64  `db:"amount"`
	Status            string `db:"status"`
	Description       string `db:"description"`
	PaymentMethod     string `db:"payment_method"`
	ExternalReference string `db:"external_reference"`
	Created           string `db:"created"`
	Updated           string `db:"updated"`
}

func (r transactionRow) toModel() *models.Transaction {
	return &models.Transaction{
		ID:                r.ID,
		UserID:            r.UserID,
		TicketID:          r.TicketID,
		Amount:            r.Amount,
		Status:            models.TransactionStatus(r.Status),
		Description:       r.Description,
		PaymentMethod:     r.PaymentMethod,
		ExternalReference: r.ExternalReference,
		CreatedAt:         parseTime(r.Created),
		UpdatedAt:         parseTime(r.Updated),
	}
}

func (r *DbxTransactionRepository) Save(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = utils.NewID()
	}

	_, err := r.db.NewQuery(
		"INSERT INTO transactions (id, user_id, ticket_id, amount, status, description, payment_method, external_reference, created, updated) "+
			"VALUES ({:id}, {:user_id}, {:ticket_id}, {:amount}, {:status}, {:description}, {:payment_method}, {:external_reference}, {:created}, {:updated}) "+
			"ON CONFLICT(id) DO UPDATE SET amount = {:amount}, status = {:status}, description = {:description}, external_reference = {:external_reference}, updated = {:updated}",
	).Bind(dbx.Params{
		"id":                 tx.ID,
		"user_id":            tx.UserID,
		"ticket_id":          tx.TicketID,
		"amount":             tx.Amount,
		"status":             string(tx.Status),
		"description":        tx.Description,
		"payment_method":     tx.PaymentMethod,
		"external_reference": tx.ExternalReference,
		"created":            formatTime(tx.CreatedAt),
		"updated":            formatTime(tx.UpdatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, status.Repository("save transaction", err)
	}

	saved := *tx
	return &saved, nil
}

func (r *DbxTransactionRepository) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	var row transactionRow
	err := r.db.NewQuery("SELECT id, user_id, ticket_id, amount, status, description, payment_method, external_reference, created, updated FROM transactions WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).WithContext(ctx).One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, status.Repository("find transaction", err)
	}
	return row.toModel(), nil
}

func (r *DbxTransactionRepository) FindByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	var rows []transactionRow
	err := r.db.NewQuery("SELECT id, user_id, ticket_id, amount, status, description, payment_method, external_reference, created, updated FROM transactions WHERE user_id = {:user_id} ORDER BY created").
		Bind(dbx.Params{"user_id": userID}).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, status.Repository("find transactions by user", err)
	}

	out := make([]*models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *DbxTransactionRepository) UpdateStatus(ctx context.Context, id string, st models.TransactionStatus) (*models.Transaction, error) {
	res, err := r.db.NewQuery(
		"UPDATE transactions SET status = {:status}, updated = {:updated} WHERE id = {:id}",
	).Bind(dbx.Params{
		"id":      id,
		"status":  string(st),
		"updated": formatTime(time.Now()),
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, status.Repository("update transaction status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, status.NotFound("transaction")
	}
	return r.FindByID(ctx, id)
}

func (r *DbxTransactionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewQuery("DELETE FROM transactions WHERE id = {:id}").
		Bind(dbx.Params{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return status.Repository("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.NotFound("transaction")
	}
	return nil
}

type DbxBalanceRepository struct {
	db dbx.Builder
}

func NewDbxBalanceRepository(db dbx.Builder) *DbxBalanceRepository {
	return &DbxBalanceRepository{db: db}
}

type balanceRow struct {
	ID      string `db:"id"`
	UserID  string `db:"user_id"`
	Amount  int64  `db:"amount"`
	Updated string `db:"updated"`
}

func (r *DbxBalanceRepository) Save(ctx context.Context, balance *models.Balance) (*models.Balance, error) {
	if balance.ID == "" {
		balance.ID = utils.NewID()
	}

	_, err := r.db.NewQuery(
		"INSERT INTO balances (id, user_id, amount, updated) VALUES ({:id}, {:user_id}, {:amount}, {:updated}) "+
			"ON CONFLICT(user_id) DO UPDATE SET amount = {:amount}, updated = {:updated}",
	).Bind(dbx.Params{
		"id":      balance.ID,
		"user_id": balance.UserID,
		"amount":  balance.Amount,
		"updated": formatTime(balance.UpdatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, status.Repository("save balance", err)
	}

	saved := *balance
	return &saved, nil
}

func (r *DbxBalanceRepository) FindByUserID(ctx context.Context, userID string) (*models.Balance, error) {
	var row balanceRow
	err := r.db.NewQuery("SELECT id, user_id, amount, updated FROM balances WHERE user_id = {:user_id}").
		Bind(dbx.Params{"user_id": userID}).WithContext(ctx).One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, status.Repository("find balance", err)
	}
	return &models.Balance{
		ID:        row.ID,
		UserID:    row.UserID,
		Amount:    row.Amount,
		UpdatedAt: parseTime(row.Updated),
	}, nil
}
