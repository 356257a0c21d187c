package models

import (
	"time"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketSoldOut   TicketStatus = "soldout"
	TicketExpired   TicketStatus = "expired"
)

type Ticket struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Type      string       `json:"type"`  // seat, stand, vip
	Price     int64        `json:"price"` // minor currency units
	Quota     int          `json:"quota"`
	Sold      int          `json:"sold"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewTicket(eventID, ticketType string, price int64, quota int) *Ticket {
	now := time.Now()
	t := &Ticket{
		EventID:   eventID,
		Type:      ticketType,
		Price:     price,
		Quota:     quota,
		Status:    TicketAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if quota == 0 {
		t.Status = TicketSoldOut
	}
	return t
}

// IsAvailable reports whether quantity units can currently be allocated.
func (t *Ticket) IsAvailable(quantity int) bool {
	return t.Status == TicketAvailable && t.Quota >= quantity
}

// SetQuota applies an administrative quota change and keeps the
// quota/status invariant. Expired tickets stay expired.
func (t *Ticket) SetQuota(quota int) {
	t.Quota = quota
	t.UpdatedAt = time.Now()

	if t.Status == TicketExpired {
		return
	}
	if t.Quota == 0 {
		t.Status = TicketSoldOut
	} else {
		t.Status = TicketAvailable
	}
}

func (t *Ticket) MarkExpired() {
	t.Status = TicketExpired
	t.UpdatedAt = time.Now()
}
