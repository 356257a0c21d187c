package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsphere/events"
	"eventsphere/models"
	"eventsphere/repository"
	"eventsphere/status"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []events.TicketEvent
}

func (c *captureNotifier) Notify(_ context.Context, event events.TicketEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureNotifier) countOf(t events.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestInventory(t *testing.T) (*InventoryService, *captureNotifier, *events.Bus) {
	t.Helper()
	capture := &captureNotifier{}
	bus := events.NewBus(1024, capture)
	bus.Start(context.Background(), 1)
	return NewInventoryService(repository.NewMemoryTicketRepository(), bus), capture, bus
}

func TestInventory_CreateTicket(t *testing.T) {
	s, capture, bus := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "vip", 50000, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, models.TicketAvailable, ticket.Status)

	bus.Close()
	assert.Equal(t, 1, capture.countOf(events.TicketCreated))
}

func TestInventory_CreateTicket_Validation(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, "event-1", "vip", -1, 10)
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, err = s.CreateTicket(ctx, "event-1", "vip", 100, -1)
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, err = s.CreateTicket(ctx, "", "vip", 100, 10)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
}

func TestInventory_Allocate_PartialAndInsufficient(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 50)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Quota)

	// More than remains: a business outcome, not an error.
	ok, err = s.Allocate(ctx, ticket.ID, 41)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Quota)
	assert.Equal(t, models.TicketAvailable, got.Status)
}

func TestInventory_Allocate_SoldOutEventFiresOnce(t *testing.T) {
	s, capture, bus := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "stand", 10000, 40)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quota)
	assert.Equal(t, models.TicketSoldOut, got.Status)

	// Repeated attempts after the flip must not re-fire the event.
	ok, err = s.Allocate(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	bus.Close()
	assert.Equal(t, 1, capture.countOf(events.TicketSoldOut))
}

func TestInventory_Allocate_ZeroQuantity(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := s.GetTicket(ctx, ticket.ID)
	assert.Equal(t, 5, got.Quota)

	// Existence is still validated for zero-quantity calls.
	_, err = s.Allocate(ctx, "missing", 0)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestInventory_Allocate_NotFound(t *testing.T) {
	s, _, _ := newTestInventory(t)

	_, err := s.Allocate(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestInventory_Allocate_Concurrent_ExactlyQuotaSucceed(t *testing.T) {
	s, capture, bus := newTestInventory(t)
	ctx := context.Background()

	const quota = 30
	const callers = 100

	ticket, err := s.CreateTicket(ctx, "event-1", "stand", 10000, quota)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Allocate(ctx, ticket.ID, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, quota, successes)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quota)
	assert.Equal(t, models.TicketSoldOut, got.Status)

	bus.Close()
	assert.Equal(t, 1, capture.countOf(events.TicketSoldOut))
	assert.Equal(t, quota, capture.countOf(events.TicketAllocated))
}

func TestInventory_Release_RevertsSoldOut(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 2)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, ticket.ID, 1))

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quota)
	assert.Equal(t, 1, got.Sold)
	assert.Equal(t, models.TicketAvailable, got.Status)
}

func TestInventory_Release_ExpiredIsNoop(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.MarkExpired(ctx, ticket.ID)
	require.NoError(t, err)

	require.NoError(t, s.Release(ctx, ticket.ID, 3))

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketExpired, got.Status)
	assert.Equal(t, 2, got.Quota, "expired tickets do not un-expire or regain quota")
}

func TestInventory_MarkExpired_BlocksAllocation(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	_, err = s.MarkExpired(ctx, ticket.ID)
	require.NoError(t, err)

	ok, err := s.Allocate(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "expired overrides remaining quota")
}

func TestInventory_UpdateQuota_KeepsInvariant(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	updated, err := s.UpdateQuota(ctx, ticket.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSoldOut, updated.Status)

	updated, err = s.UpdateQuota(ctx, ticket.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.TicketAvailable, updated.Status)

	_, err = s.UpdateQuota(ctx, ticket.ID, -1)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
}

func TestInventory_UpdatePriceAndType(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	updated, err := s.UpdatePrice(ctx, ticket.ID, 30000)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), updated.Price)

	updated, err = s.UpdateType(ctx, ticket.ID, "vip")
	require.NoError(t, err)
	assert.Equal(t, "vip", updated.Type)
}

func TestInventory_DeleteTicket_OnlyWhileUnsold(t *testing.T) {
	s, capture, bus := newTestInventory(t)
	ctx := context.Background()

	sold, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)
	ok, err := s.Allocate(ctx, sold.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)

	err = s.DeleteTicket(ctx, sold.ID)
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	unsold, err := s.CreateTicket(ctx, "event-1", "stand", 10000, 5)
	require.NoError(t, err)
	require.NoError(t, s.DeleteTicket(ctx, unsold.ID))

	_, err = s.GetTicket(ctx, unsold.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)

	bus.Close()
	assert.Equal(t, 1, capture.countOf(events.TicketDeleted))
}

func TestInventory_CheckAvailability_Advisory(t *testing.T) {
	s, _, _ := newTestInventory(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "event-1", "seat", 25000, 5)
	require.NoError(t, err)

	ok, err := s.CheckAvailability(ctx, ticket.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckAvailability(ctx, ticket.ID, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CheckAvailability(ctx, "missing", 1)
	assert.ErrorIs(t, err, status.ErrNotFound)
}
