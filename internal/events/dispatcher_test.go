package events

import (
	"context"
	"errors"
	"testing"

	"github.com/findesk/findesk/internal/domain"
)

func ticketWithID(id string) domain.Ticket {
	return domain.Ticket{ID: id}
}

func TestDispatcherInvokesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventTicketOpened, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Ticket.ID)
		return errors.New("boom")
	})
	d.Subscribe(EventTicketOpened, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Ticket.ID)
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, _ Event) error {
		t.Error("wrong event type invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketOpened, Ticket: ticketWithID("abc")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != "first:abc" || got[1] != "second:abc" {
		t.Fatalf("handlers invoked: %v", got)
	}
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketRated}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}
