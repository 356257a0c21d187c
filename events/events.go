package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eventsphere/models"
)

type Type string

const (
	TicketCreated   Type = "ticket_created"
	TicketUpdated   Type = "ticket_updated"
	TicketDeleted   Type = "ticket_deleted"
	TicketAllocated Type = "ticket_allocated"
	TicketSoldOut   Type = "ticket_sold_out"
)

// TicketEvent describes one inventory mutation. Ticket is set for created
// and updated events; the other variants carry only the ticket id.
type TicketEvent struct {
	Type     Type           `json:"type"`
	Ticket   *models.Ticket `json:"ticket,omitempty"`
	TicketID string         `json:"ticket_id"`
	Quantity int            `json:"quantity,omitempty"`
	At       time.Time      `json:"at"`
}

// Notifier receives fully formed events from a bus worker. Notify runs
// off the inventory's per-ticket lock, so implementations are free to do
// slow IO.
type Notifier interface {
	Notify(ctx context.Context, event TicketEvent)
}

// Bus fans inventory events out to notifiers through a buffered channel.
// Publish never blocks the caller: when the buffer is full the event is
// dropped and counted, delivery being fire-and-forget.
type Bus struct {
	ch        chan TicketEvent
	notifiers []Notifier

	wg      sync.WaitGroup
	dropped func()

	mu     sync.RWMutex
	closed bool
}

func NewBus(buffer int, notifiers ...Notifier) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		ch:        make(chan TicketEvent, buffer),
		notifiers: notifiers,
	}
}

// OnDrop registers a callback invoked when an event is discarded because
// the buffer is full. The monitoring package hooks a counter in here.
func (b *Bus) OnDrop(fn func()) {
	b.dropped = fn
}

// Start launches workers consuming the event channel. Workers exit when
// the context is cancelled or the bus is closed.
func (b *Bus) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-b.ch:
					if !ok {
						return
					}
					for _, n := range b.notifiers {
						n.Notify(ctx, event)
					}
				}
			}
		}()
	}
}

// Publish enqueues an event for delivery. Safe to call from any
// goroutine, also after Close; never blocks.
func (b *Bus) Publish(event TicketEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("event bus closed, dropping event", "type", event.Type, "ticket_id", event.TicketID)
		if b.dropped != nil {
			b.dropped()
		}
		return
	}

	select {
	case b.ch <- event:
	default:
		slog.Warn("event bus full, dropping event", "type", event.Type, "ticket_id", event.TicketID)
		if b.dropped != nil {
			b.dropped()
		}
	}
}

// Depth reports the number of queued, undelivered events.
func (b *Bus) Depth() int {
	return len(b.ch)
}

// Close stops accepting events and waits for workers to drain the queue.
// Later Publish calls are dropped, not panics.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// LogNotifier writes every event to the structured log. It doubles as the
// development stand-in for the email notifier.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event TicketEvent) {
	switch event.Type {
	case TicketCreated:
		slog.Info("ticket created", "ticket_id", event.Ticket.ID, "event_id", event.Ticket.EventID, "type", event.Ticket.Type)
	case TicketSoldOut:
		slog.Info("ticket sold out", "ticket_id", event.TicketID)
	case TicketAllocated:
		slog.Info("tickets allocated", "ticket_id", event.TicketID, "quantity", event.Quantity)
	case TicketDeleted:
		slog.Info("ticket deleted", "ticket_id", event.TicketID)
	default:
		slog.Debug("ticket event", "type", event.Type, "ticket_id", event.TicketID)
	}
}
