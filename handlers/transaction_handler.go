package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventsphere/services"
)

type TransactionHandler struct {
	ledger *services.TransactionService
}

func NewTransactionHandler(ledger *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

func (h *TransactionHandler) CreateTransaction(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TicketID      string `json:"ticket_id"`
		Amount        int64  `json:"amount"`
		Description   string `json:"description"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tx, err := h.ledger.CreateTransaction(e.Request.Context(), e.Auth.Id, req.TicketID, req.Amount, req.Description, req.PaymentMethod)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) GetTransaction(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tx, err := h.ledger.GetByID(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return toAPIError(err)
	}
	if tx.UserID != e.Auth.Id {
		return apis.NewNotFoundError("Not found", nil)
	}
	return e.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) ListUserTransactions(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	txs, err := h.ledger.GetByUser(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, txs)
}

func (h *TransactionHandler) ProcessPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ExternalReference string `json:"external_reference"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tx, err := h.ledger.ProcessPayment(e.Request.Context(), e.Request.PathValue("id"), req.ExternalReference)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) ValidatePayment(e *core.RequestEvent) error {
	valid, err := h.ledger.ValidatePayment(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"valid": valid,
	})
}

func (h *TransactionHandler) RefundTransaction(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tx, err := h.ledger.Refund(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) DeleteTransaction(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if err := h.ledger.Delete(e.Request.Context(), e.Request.PathValue("id")); err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"deleted": true,
	})
}

func (h *TransactionHandler) GetBalance(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	balance, err := h.ledger.GetUserBalance(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	if balance == nil {
		return e.JSON(http.StatusOK, map[string]any{
			"user_id": e.Auth.Id,
			"amount":  0,
		})
	}
	return e.JSON(http.StatusOK, balance)
}

func (h *TransactionHandler) AddFunds(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Amount        int64  `json:"amount"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tx, total, err := h.ledger.AddFundsToBalance(e.Request.Context(), e.Auth.Id, req.Amount, req.PaymentMethod)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"transaction": tx,
		"balance":     total,
	})
}

func (h *TransactionHandler) Withdraw(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tx, total, err := h.ledger.WithdrawFunds(e.Request.Context(), e.Auth.Id, req.Amount, req.Description)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"transaction": tx,
		"balance":     total,
	})
}
