// Package notify formats and sends ticket-event mail through the relay.
// Delivery is best-effort: failures are logged and swallowed, never surfaced
// to the lifecycle operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/findesk/findesk/internal/config"
	"github.com/findesk/findesk/internal/events"
)

// Service subscribes to ticket events and fans mail out to the requester and
// the configured operator addresses.
type Service struct {
	relay     Relay
	logger    *zap.Logger
	subject   string
	operators []string
	appLink   string
}

// NewService creates the notification service.
func NewService(relay Relay, logger *zap.Logger, cfg config.MailConfig) *Service {
	return &Service{
		relay:     relay,
		logger:    logger,
		subject:   cfg.Subject,
		operators: cfg.Operators,
		appLink:   cfg.AppLink,
	}
}

// RegisterHandlers subscribes to every ticket event.
func (n *Service) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes() {
		dispatcher.Subscribe(eventType, n.handleTicketEvent)
	}
}

func (n *Service) handleTicketEvent(ctx context.Context, event events.Event) error {
	if n.relay == nil {
		return nil
	}
	body := n.buildBody(event)
	recipients := n.recipients(event)

	// Deliveries run independently per recipient; one failure must not abort
	// the others or reach the caller.
	var wg sync.WaitGroup
	for _, to := range recipients {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			msg := Message{To: to, Subject: n.subject, Body: body}
			if err := n.relay.Send(ctx, msg); err != nil {
				n.logger.Warn("mail delivery failed",
					zap.String("to", to),
					zap.String("ticket_id", event.Ticket.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
				return
			}
			n.logger.Debug("mail sent",
				zap.String("to", to),
				zap.String("ticket_id", event.Ticket.ID))
		}(to)
	}
	wg.Wait()
	return nil
}

func (n *Service) buildBody(event events.Event) string {
	ticket := event.Ticket
	return fmt.Sprintf(
		"Update summary: %s\nTicket ID: %s\nRequester: %s\nStatus: %s\nDescription: %s\nAccess link: %s",
		event.Summary,
		ticket.ID,
		ticket.RequesterName,
		ticket.Status,
		ticket.Description,
		n.appLink,
	)
}

func (n *Service) recipients(event events.Event) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	add(event.Ticket.RequesterEmail)
	for _, op := range n.operators {
		add(op)
	}
	return out
}
