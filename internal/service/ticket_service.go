package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/events"
	"github.com/findesk/findesk/internal/identity"
	"github.com/findesk/findesk/internal/repository"
	"github.com/findesk/findesk/internal/sla"
	apperrors "github.com/findesk/findesk/pkg/util"
)

// TicketService owns the ticket lifecycle: state transitions, field mutation
// rules and permission checks. Persistence failures on mutations propagate;
// notification failures never do (handlers downstream of the dispatcher log
// and swallow them).
type TicketService struct {
	tickets    repository.TicketRepository
	names      *identity.Directory
	slaFmt     sla.Formatter
	dispatcher events.Dispatcher
	logger     *zap.Logger

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Directory  *identity.Directory
	Formatter  sla.Formatter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		names:      deps.Directory,
		slaFmt:     deps.Formatter,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		Now:        time.Now,
		NewID:      domain.NewTicketID,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterName string
	RequesterRole string
	Description   string
	ContentType   domain.ContentType
	Category      string
	Priority      domain.TicketPriority
	Attachments   []domain.Attachment
}

// CommentInput describes a comment payload.
type CommentInput struct {
	Body        string
	ContentType domain.ContentType
	Attachments []domain.Attachment
}

// Tab selects between the open and closed list views.
type Tab string

const (
	TabOpen   Tab = "open"
	TabClosed Tab = "closed"
)

// ListFilter describes listing parameters for ListTickets.
type ListFilter struct {
	Priority *domain.TicketPriority
	Category *string
	Assignee *string
	Tab      Tab
	Limit    int
	Offset   int
}

// CreateTicket opens a new ticket for the principal and computes its
// business-day due date from the priority.
func (s *TicketService) CreateTicket(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	name := strings.TrimSpace(input.RequesterName)
	if err := validateRequesterName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(principal.Email) == "" {
		return nil, apperrors.NewValidationError("requester email required", nil)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	now := s.Now()
	ticket := &domain.Ticket{
		ID:             s.NewID(),
		RequesterName:  name,
		RequesterEmail: strings.ToLower(principal.Email),
		RequesterRole:  strings.TrimSpace(input.RequesterRole),
		Category:       strings.TrimSpace(input.Category),
		Priority:       input.Priority,
		Description:    strings.TrimSpace(input.Description),
		ContentType:    contentTypeOrDefault(input.ContentType),
		Status:         domain.TicketStatusOpen,
		OpenedAt:       now,
		DueAt:          sla.DueDate(now, input.Priority),
		Attachments:    input.Attachments,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	s.publishEvent(ctx, events.EventTicketOpened, ticket, principal, "New ticket opened")
	return ticket, nil
}

// GetTicket fetches a ticket the principal is allowed to observe.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets returns tickets visible to the principal, ordered by opening
// instant descending. Non-admins are always scoped to their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, principal domain.Principal, filter ListFilter) ([]domain.Ticket, error) {
	resolved := filter.Tab == TabClosed
	repoFilter := repository.TicketFilter{
		Priority: filter.Priority,
		Category: filter.Category,
		Assignee: filter.Assignee,
		Resolved: &resolved,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if !principal.IsAdmin {
		email := principal.Email
		repoFilter.RequesterEmail = &email
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return tickets, nil
}

// AddComment appends an entry to the ticket's append-only thread.
func (s *TicketService) AddComment(ctx context.Context, principal domain.Principal, ticketID string, input CommentInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}

	s.appendComment(ticket, principal, body, input.ContentType, input.Attachments)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketCommented, ticket, principal, "New comment added")
	return ticket, nil
}

// EditDescription updates the problem description. Requesters may edit while
// the ticket is open; admins at any time.
func (s *TicketService) EditDescription(ctx context.Context, principal domain.Principal, ticketID, description string, contentType domain.ContentType) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.IsAdmin {
		if !principal.Owns(ticket) {
			return nil, apperrors.NewForbidden("access denied")
		}
		if ticket.IsResolved() {
			return nil, apperrors.NewConflict("resolved tickets can only be edited by an admin", nil)
		}
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	ticket.Description = description
	ticket.ContentType = contentTypeOrDefault(contentType)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketCommented, ticket, principal, "Description updated")
	return ticket, nil
}

// AddAttachment appends an uploaded file reference to the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, principal domain.Principal, ticketID string, attachment domain.Attachment) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	if attachment.Name == "" || attachment.ContentRef == "" {
		return nil, apperrors.NewValidationError("attachment name and content reference required", nil)
	}

	ticket.Attachments = append(ticket.Attachments, attachment)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	return ticket, nil
}

// ChangeStatus transitions a ticket. Admin-only. Resolving requires a
// concluding comment and stamps the SLA; leaving Resolved clears both.
func (s *TicketService) ChangeStatus(ctx context.Context, principal domain.Principal, ticketID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if !principal.IsAdmin {
		return nil, apperrors.NewForbidden("only admins can change status")
	}
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if newStatus == domain.TicketStatusOpen && ticket.Rating != nil {
		return nil, apperrors.NewConflict("rated tickets cannot return to open", nil)
	}

	comment = strings.TrimSpace(comment)
	if newStatus == domain.TicketStatusResolved {
		if comment == "" {
			return nil, apperrors.NewValidationError("a concluding comment is required to resolve", nil)
		}
		now := s.Now()
		ticket.ResolvedAt = &now
		ticket.SLADuration = s.slaFmt.Elapsed(ticket.OpenedAt, now)
	} else {
		ticket.ResolvedAt = nil
		ticket.SLADuration = ""
	}
	ticket.Status = newStatus
	if comment != "" {
		s.appendComment(ticket, principal, comment, domain.ContentTypePlain, nil)
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketStatusChanged, ticket, principal, "Status changed to "+string(newStatus))
	return ticket, nil
}

// AssignTicket sets the handling admin. Admin-only; reassignment is free.
func (s *TicketService) AssignTicket(ctx context.Context, principal domain.Principal, ticketID, assignee string) (*domain.Ticket, error) {
	if !principal.IsAdmin {
		return nil, apperrors.NewForbidden("only admins can assign tickets")
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewValidationError("assignee required", nil)
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	ticket.Assignee = &assignee
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketAssigned, ticket, principal, "Ticket assigned to "+assignee)
	return ticket, nil
}

// ReopenTicket puts a resolved ticket back to open. Requester-only; a rated
// ticket never reopens.
func (s *TicketService) ReopenTicket(ctx context.Context, principal domain.Principal, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.Owns(ticket) {
		return nil, apperrors.NewForbidden("only the requester can reopen a ticket")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("a reason is required to reopen", nil)
	}
	if ticket.Rating != nil {
		return nil, apperrors.NewConflict("rated tickets cannot be reopened", nil)
	}
	if !ticket.IsResolved() {
		return nil, apperrors.NewConflict("only resolved tickets can be reopened", nil)
	}

	ticket.Status = domain.TicketStatusOpen
	ticket.ResolvedAt = nil
	ticket.SLADuration = ""
	s.appendComment(ticket, principal, "Reopened: "+reason, domain.ContentTypePlain, nil)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketReopened, ticket, principal, "Ticket reopened")
	return ticket, nil
}

// RateTicket records the requester's 1-5 rating of a resolved ticket.
// Re-rating replaces the previous value; the rating's presence is what makes
// the ticket terminal.
func (s *TicketService) RateTicket(ctx context.Context, principal domain.Principal, ticketID string, rating int) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !principal.Owns(ticket) {
		return nil, apperrors.NewForbidden("only the requester can rate a ticket")
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	if !ticket.IsResolved() {
		return nil, apperrors.NewConflict("only resolved tickets can be rated", nil)
	}

	ticket.Rating = &rating
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketRated, ticket, principal, "Ticket rated")
	return ticket, nil
}

// DeleteTicket removes the record. Admin-only and unconditional: no state
// precondition guards it.
func (s *TicketService) DeleteTicket(ctx context.Context, principal domain.Principal, ticketID string) error {
	if !principal.IsAdmin {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return mapRepoError(err)
	}
	s.publishEvent(ctx, events.EventTicketDeleted, ticket, principal, "Ticket deleted")
	return nil
}

func (s *TicketService) appendComment(ticket *domain.Ticket, principal domain.Principal, body string, contentType domain.ContentType, attachments []domain.Attachment) {
	ticket.Comments = append(ticket.Comments, domain.Comment{
		Author:      s.displayName(principal, ticket),
		Body:        body,
		ContentType: contentTypeOrDefault(contentType),
		CreatedAt:   s.Now(),
		Attachments: attachments,
	})
}

func (s *TicketService) displayName(principal domain.Principal, ticket *domain.Ticket) string {
	if s.names != nil {
		return s.names.DisplayName(principal, ticket)
	}
	if principal.Name != "" {
		return principal.Name
	}
	return principal.Email
}

func (s *TicketService) publishEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, principal domain.Principal, summary string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Ticket:    *ticket,
		Actor:     s.displayName(principal, ticket),
		Summary:   summary,
		Timestamp: s.Now(),
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ticket event", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// validateRequesterName enforces the composite-name rule: at least two
// space-separated tokens, each starting with an upper-case letter.
func validateRequesterName(name string) error {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return apperrors.NewValidationError("requester name must include first and last name", nil)
	}
	for _, token := range tokens {
		first, _ := utf8.DecodeRuneInString(token)
		if !unicode.IsUpper(first) {
			return apperrors.NewValidationError("each name part must start with an upper-case letter", map[string]any{"part": token})
		}
	}
	return nil
}

func contentTypeOrDefault(ct domain.ContentType) domain.ContentType {
	if ct == domain.ContentTypeHTML {
		return domain.ContentTypeHTML
	}
	return domain.ContentTypePlain
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", nil)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified concurrently, retry", nil)
	default:
		return apperrors.NewPersistenceError(err)
	}
}
