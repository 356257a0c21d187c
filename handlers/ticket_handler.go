package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventsphere/services"
	"eventsphere/status"
)

type TicketHandler struct {
	inventory *services.InventoryService
}

func NewTicketHandler(inventory *services.InventoryService) *TicketHandler {
	return &TicketHandler{inventory: inventory}
}

func (h *TicketHandler) CreateTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
		Type    string `json:"type"`
		Price   int64  `json:"price"`
		Quota   int    `json:"quota"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.CreateTicket(e.Request.Context(), req.EventID, req.Type, req.Price, req.Quota)
	if err != nil {
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.inventory.GetTicket(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) ListEventTickets(e *core.RequestEvent) error {
	tickets, err := h.inventory.GetTicketsByEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) CheckAvailability(e *core.RequestEvent) error {
	quantity := 1
	if q := e.Request.URL.Query().Get("quantity"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil {
			return apis.NewBadRequestError("Invalid quantity", err)
		}
		quantity = parsed
	}
	available, err := h.inventory.CheckAvailability(e.Request.Context(), e.Request.PathValue("id"), quantity)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"available": available,
	})
}

func (h *TicketHandler) AllocateTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	allocated, err := h.inventory.Allocate(e.Request.Context(), e.Request.PathValue("id"), req.Quantity)
	if err != nil {
		return toAPIError(err)
	}
	if !allocated {
		return e.JSON(http.StatusConflict, map[string]any{
			"allocated": false,
			"message":   "Not enough tickets available",
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"allocated": true,
		"quantity":  req.Quantity,
	})
}

func (h *TicketHandler) ReleaseTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.inventory.Release(e.Request.Context(), e.Request.PathValue("id"), req.Quantity); err != nil {
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"released": true,
		"quantity": req.Quantity,
	})
}

func (h *TicketHandler) UpdateQuota(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Quota int `json:"quota"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.UpdateQuota(e.Request.Context(), e.Request.PathValue("id"), req.Quota)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) UpdatePrice(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Price int64 `json:"price"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.UpdatePrice(e.Request.Context(), e.Request.PathValue("id"), req.Price)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) UpdateType(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.UpdateType(e.Request.Context(), e.Request.PathValue("id"), req.Type)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) ExpireTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticket, err := h.inventory.MarkExpired(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) DeleteTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if err := h.inventory.DeleteTicket(e.Request.Context(), e.Request.PathValue("id")); err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"deleted": true,
	})
}

// toAPIError maps service errors onto PocketBase's API error shapes.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", err)
	case errors.Is(err, status.ErrInvalidInput):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrAlreadyFinalized),
		errors.Is(err, status.ErrRefundNotAllowed),
		errors.Is(err, status.ErrDeleteProcessed),
		errors.Is(err, status.ErrConflict):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrInsufficientFunds):
		return apis.NewBadRequestError("Insufficient funds", nil)
	case errors.Is(err, status.ErrCreditPending):
		// The charge went through; the credit will be reconciled.
		return apis.NewApiError(http.StatusAccepted, "Payment accepted, balance update pending", nil)
	default:
		return apis.NewInternalServerError("Something went wrong", err)
	}
}
