package services

import (
	"context"

	"eventsphere/events"
	"eventsphere/models"
	"eventsphere/monitoring"
	"eventsphere/repository"
	"eventsphere/status"
	"eventsphere/utils"
)

// InventoryService owns ticket quota and status mutation. All
// read-modify-write paths for one ticket id are serialized by a keyed
// mutex; different tickets proceed independently. Events are collected
// while the lock is held and published only after it is released.
type InventoryService struct {
	repo  repository.TicketRepository
	bus   *events.Bus
	locks *utils.KeyMutex
}

func NewInventoryService(repo repository.TicketRepository, bus *events.Bus) *InventoryService {
	return &InventoryService{
		repo:  repo,
		bus:   bus,
		locks: utils.NewKeyMutex(),
	}
}

func (s *InventoryService) publish(evts []events.TicketEvent) {
	for _, e := range evts {
		s.bus.Publish(e)
	}
}

// CreateTicket registers a new ticket type for an event. A zero quota is
// allowed and starts the ticket sold out.
func (s *InventoryService) CreateTicket(ctx context.Context, eventID, ticketType string, price int64, quota int) (*models.Ticket, error) {
	if eventID == "" {
		return nil, status.InvalidInput("event id is required")
	}
	if price < 0 {
		return nil, status.InvalidInput("ticket price cannot be negative")
	}
	if quota < 0 {
		return nil, status.InvalidInput("ticket quota cannot be negative")
	}

	saved, err := s.repo.Save(ctx, models.NewTicket(eventID, ticketType, price, quota))
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.TicketEvent{Type: events.TicketCreated, Ticket: saved, TicketID: saved.ID})
	return saved, nil
}

func (s *InventoryService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, status.NotFound("ticket")
	}
	return ticket, nil
}

func (s *InventoryService) GetTicketsByEvent(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	return s.repo.FindByEventID(ctx, eventID)
}

// Allocate reserves quantity units. It returns (false, nil) when the
// inventory is insufficient: an expected business outcome, not an error.
// Exactly one allocation observes the crossing into quota zero, so the
// sold-out event fires once.
func (s *InventoryService) Allocate(ctx context.Context, id string, quantity int) (bool, error) {
	if quantity < 0 {
		return false, status.InvalidInput("quantity cannot be negative")
	}

	ok, evts, err := s.allocateLocked(ctx, id, quantity)
	s.publish(evts)
	return ok, err
}

func (s *InventoryService) allocateLocked(ctx context.Context, id string, quantity int) (bool, []events.TicketEvent, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		monitoring.TrackAllocation("error")
		return false, nil, err
	}
	if ticket == nil {
		monitoring.TrackAllocation("not_found")
		return false, nil, status.NotFound("ticket")
	}
	if quantity == 0 {
		return true, nil, nil
	}
	if !ticket.IsAvailable(quantity) {
		monitoring.TrackAllocation("insufficient")
		return false, nil, nil
	}

	ticket.Quota -= quantity
	ticket.Sold += quantity

	evts := []events.TicketEvent{{Type: events.TicketAllocated, TicketID: id, Quantity: quantity}}

	if ticket.Quota == 0 {
		ticket.Status = models.TicketSoldOut
		if _, err := s.repo.Update(ctx, ticket); err != nil {
			monitoring.TrackAllocation("error")
			return false, nil, err
		}
		evts = append(evts, events.TicketEvent{Type: events.TicketSoldOut, TicketID: id})
	} else {
		if err := s.repo.UpdateQuota(ctx, id, ticket.Quota, ticket.Sold); err != nil {
			monitoring.TrackAllocation("error")
			return false, nil, err
		}
	}

	monitoring.TrackAllocation("allocated")
	return true, evts, nil
}

// Release is the compensating action for a prior allocation, used when a
// downstream payment fails. Expired tickets do not un-expire, so the
// release is a no-op for them.
func (s *InventoryService) Release(ctx context.Context, id string, quantity int) error {
	if quantity < 0 {
		return status.InvalidInput("quantity cannot be negative")
	}
	if quantity == 0 {
		return nil
	}

	evts, err := s.releaseLocked(ctx, id, quantity)
	s.publish(evts)
	return err
}

func (s *InventoryService) releaseLocked(ctx context.Context, id string, quantity int) ([]events.TicketEvent, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		monitoring.TrackRelease("error")
		return nil, err
	}
	if ticket == nil {
		monitoring.TrackRelease("not_found")
		return nil, status.NotFound("ticket")
	}
	if ticket.Status == models.TicketExpired {
		monitoring.TrackRelease("expired")
		return nil, nil
	}

	ticket.Quota += quantity
	ticket.Sold -= quantity
	if ticket.Sold < 0 {
		ticket.Sold = 0
	}

	if ticket.Status == models.TicketSoldOut && ticket.Quota > 0 {
		ticket.Status = models.TicketAvailable
		updated, err := s.repo.Update(ctx, ticket)
		if err != nil {
			monitoring.TrackRelease("error")
			return nil, err
		}
		monitoring.TrackRelease("released")
		return []events.TicketEvent{{Type: events.TicketUpdated, Ticket: updated, TicketID: id}}, nil
	}

	if err := s.repo.UpdateQuota(ctx, id, ticket.Quota, ticket.Sold); err != nil {
		monitoring.TrackRelease("error")
		return nil, err
	}
	monitoring.TrackRelease("released")
	return nil, nil
}

// CheckAvailability is an advisory snapshot. Concurrent allocation can
// change the outcome before a subsequent Allocate call; Allocate is the
// sole authority.
func (s *InventoryService) CheckAvailability(ctx context.Context, id string, quantity int) (bool, error) {
	if quantity < 0 {
		return false, status.InvalidInput("quantity cannot be negative")
	}

	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if ticket == nil {
		return false, status.NotFound("ticket")
	}
	return ticket.IsAvailable(quantity), nil
}

// UpdateQuota is an administrative quota reset under the same per-ticket
// exclusion as allocation.
func (s *InventoryService) UpdateQuota(ctx context.Context, id string, quota int) (*models.Ticket, error) {
	if quota < 0 {
		return nil, status.InvalidInput("quota cannot be negative")
	}

	return s.updateTicket(ctx, id, func(t *models.Ticket) error {
		t.SetQuota(quota)
		return nil
	})
}

func (s *InventoryService) UpdatePrice(ctx context.Context, id string, price int64) (*models.Ticket, error) {
	if price < 0 {
		return nil, status.InvalidInput("ticket price cannot be negative")
	}

	return s.updateTicket(ctx, id, func(t *models.Ticket) error {
		t.Price = price
		return nil
	})
}

func (s *InventoryService) UpdateType(ctx context.Context, id, ticketType string) (*models.Ticket, error) {
	if ticketType == "" {
		return nil, status.InvalidInput("ticket type is required")
	}

	return s.updateTicket(ctx, id, func(t *models.Ticket) error {
		t.Type = ticketType
		return nil
	})
}

// MarkExpired is terminal: no further allocation regardless of quota,
// and no way back.
func (s *InventoryService) MarkExpired(ctx context.Context, id string) (*models.Ticket, error) {
	return s.updateTicket(ctx, id, func(t *models.Ticket) error {
		t.MarkExpired()
		return nil
	})
}

func (s *InventoryService) updateTicket(ctx context.Context, id string, mutate func(*models.Ticket) error) (*models.Ticket, error) {
	updated, evts, err := func() (*models.Ticket, []events.TicketEvent, error) {
		s.locks.Lock(id)
		defer s.locks.Unlock(id)

		ticket, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if ticket == nil {
			return nil, nil, status.NotFound("ticket")
		}

		if err := mutate(ticket); err != nil {
			return nil, nil, err
		}

		saved, err := s.repo.Update(ctx, ticket)
		if err != nil {
			return nil, nil, err
		}
		return saved, []events.TicketEvent{{Type: events.TicketUpdated, Ticket: saved, TicketID: id}}, nil
	}()

	s.publish(evts)
	return updated, err
}

// DeleteTicket removes a ticket that has not sold any units yet.
func (s *InventoryService) DeleteTicket(ctx context.Context, id string) error {
	evts, err := func() ([]events.TicketEvent, error) {
		s.locks.Lock(id)
		defer s.locks.Unlock(id)

		ticket, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ticket == nil {
			return nil, status.NotFound("ticket")
		}
		if ticket.Sold > 0 {
			return nil, status.InvalidInput("cannot delete a ticket with sold units")
		}

		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		return []events.TicketEvent{{Type: events.TicketDeleted, TicketID: id}}, nil
	}()

	s.publish(evts)
	return err
}
