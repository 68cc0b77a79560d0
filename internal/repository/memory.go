package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findesk/findesk/internal/domain"
)

// memoryTicketRepository keeps tickets in process memory. It backs engine
// tests and serves as a development fallback when no Postgres DSN is
// configured, matching the DSN-less boot path.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *memoryTicketRepository) Get(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTicket(stored)
	return &out, nil
}

func (r *memoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != ticket.Version {
		return ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *memoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(r.tickets, id)
	return nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !matchesFilter(ticket, filter) {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenedAt.Equal(result[j].OpenedAt) {
			return result[i].OpenedAt.After(result[j].OpenedAt)
		}
		return result[i].ID > result[j].ID
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matchesFilter(ticket domain.Ticket, filter TicketFilter) bool {
	if filter.RequesterEmail != nil && !strings.EqualFold(ticket.RequesterEmail, *filter.RequesterEmail) {
		return false
	}
	if filter.Priority != nil && ticket.Priority != *filter.Priority {
		return false
	}
	if filter.Category != nil && ticket.Category != *filter.Category {
		return false
	}
	if filter.Assignee != nil {
		if ticket.Assignee == nil || *ticket.Assignee != *filter.Assignee {
			return false
		}
	}
	if filter.Resolved != nil && ticket.IsResolved() != *filter.Resolved {
		return false
	}
	return true
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	out := t
	if t.ResolvedAt != nil {
		resolvedAt := *t.ResolvedAt
		out.ResolvedAt = &resolvedAt
	}
	if t.Assignee != nil {
		assignee := *t.Assignee
		out.Assignee = &assignee
	}
	if t.Rating != nil {
		rating := *t.Rating
		out.Rating = &rating
	}
	out.Comments = make([]domain.Comment, len(t.Comments))
	for i, c := range t.Comments {
		out.Comments[i] = c
		out.Comments[i].Attachments = append([]domain.Attachment(nil), c.Attachments...)
	}
	out.Attachments = append([]domain.Attachment(nil), t.Attachments...)
	return out
}
