package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/findesk/findesk/internal/config"
	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/events"
)

func ticketEvent() events.Event {
	return events.Event{
		ID:   "evt-1",
		Type: events.EventTicketOpened,
		Ticket: domain.Ticket{
			ID:             "abc1234567890",
			RequesterName:  "Ana Silva",
			RequesterEmail: "ana@example.com",
			Status:         domain.TicketStatusOpen,
			Description:    "printer on fire",
		},
		Actor:     "Ana Silva",
		Summary:   "New ticket opened",
		Timestamp: time.Now(),
	}
}

func TestHandleTicketEventFansOut(t *testing.T) {
	var mu sync.Mutex
	var received []Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode relay payload: %v", err)
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(NewHTTPRelay(server.URL, 5*time.Second), zap.NewNop(), config.MailConfig{
		Subject:   "FinDesk: ticket update",
		Operators: []string{"ops@example.com", "ana@example.com"}, // duplicate of requester
		AppLink:   "https://findesk.example.com/",
	})

	if err := svc.handleTicketEvent(context.Background(), ticketEvent()); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries (requester + operator, de-duplicated), got %d", len(received))
	}
	tos := map[string]bool{}
	for _, msg := range received {
		tos[msg.To] = true
		if msg.Subject != "FinDesk: ticket update" {
			t.Errorf("subject %q", msg.Subject)
		}
		for _, want := range []string{
			"Update summary: New ticket opened",
			"Ticket ID: abc1234567890",
			"Requester: Ana Silva",
			"Status: OPEN",
			"Description: printer on fire",
			"Access link: https://findesk.example.com/",
		} {
			if !strings.Contains(msg.Body, want) {
				t.Errorf("body missing %q:\n%s", want, msg.Body)
			}
		}
	}
	if !tos["ana@example.com"] || !tos["ops@example.com"] {
		t.Errorf("recipients: %v", tos)
	}
}

func TestHandleTicketEventSwallowsFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewService(NewHTTPRelay(server.URL, 5*time.Second), zap.NewNop(), config.MailConfig{
		Subject:   "FinDesk: ticket update",
		Operators: []string{"ops@example.com"},
	})

	if err := svc.handleTicketEvent(context.Background(), ticketEvent()); err != nil {
		t.Fatalf("delivery failure must not propagate, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("every recipient should still be attempted, got %d attempts", attempts)
	}
}

func TestHandleTicketEventUnreachableRelay(t *testing.T) {
	svc := NewService(NewHTTPRelay("http://127.0.0.1:1", time.Second), zap.NewNop(), config.MailConfig{
		Operators: []string{"ops@example.com"},
	})
	if err := svc.handleTicketEvent(context.Background(), ticketEvent()); err != nil {
		t.Fatalf("unreachable relay must not propagate, got %v", err)
	}
}
