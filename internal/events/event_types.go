package events

import (
	"time"

	"github.com/findesk/findesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened        EventType = "ticket_opened"
	EventTicketCommented     EventType = "ticket_commented"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReopened      EventType = "ticket_reopened"
	EventTicketRated         EventType = "ticket_rated"
	EventTicketDeleted       EventType = "ticket_deleted"
)

// AllTypes lists every ticket event for handlers subscribing to the full stream.
func AllTypes() []EventType {
	return []EventType{
		EventTicketOpened,
		EventTicketCommented,
		EventTicketStatusChanged,
		EventTicketAssigned,
		EventTicketReopened,
		EventTicketRated,
		EventTicketDeleted,
	}
}

// Event is a ticket lifecycle event emitted after a successful persist. It
// carries a ticket snapshot so downstream handlers never re-read the store.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Ticket    domain.Ticket `json:"ticket"`
	Actor     string        `json:"actor"`
	Summary   string        `json:"summary"`
	Timestamp time.Time     `json:"timestamp"`
}
