package events

import (
	"context"
	"log/slog"

	pubnub "github.com/pubnub/go"
)

// PubNubNotifier publishes ticket events to PubNub so front-end clients
// can react in real time (seat maps, sold-out banners).
type PubNubNotifier struct {
	pn      *pubnub.PubNub
	channel string
}

func NewPubNubNotifier(pn *pubnub.PubNub, channel string) *PubNubNotifier {
	if channel == "" {
		channel = "ticket-events"
	}
	return &PubNubNotifier{pn: pn, channel: channel}
}

func (n *PubNubNotifier) Notify(_ context.Context, event TicketEvent) {
	message := map[string]any{
		"type":      string(event.Type),
		"ticket_id": event.TicketID,
		"at":        event.At.Unix(),
	}
	if event.Quantity > 0 {
		message["quantity"] = event.Quantity
	}
	if event.Ticket != nil {
		message["event_id"] = event.Ticket.EventID
		message["status"] = string(event.Ticket.Status)
		message["quota"] = event.Ticket.Quota
	}

	_, _, err := n.pn.Publish().
		Channel(n.channel).
		Message(message).
		Execute()
	if err != nil {
		slog.Error("pubnub publish failed", "channel", n.channel, "error", err)
	}
}
