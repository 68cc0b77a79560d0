// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/findesk/findesk/internal/domain"
)

// LoginRequest carries login credentials. Password holds the shared admin
// passphrase under the allowlist strategy; Token an identity-provider JWT
// under the claims strategy.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// LoginResponse returns the session token and the resolved identity.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
}

// AttachmentPayload references an already uploaded file.
type AttachmentPayload struct {
	Name       string `json:"name"`
	ContentRef string `json:"content_ref"`
}

// CreateTicketRequest opens a new ticket.
type CreateTicketRequest struct {
	RequesterName string              `json:"requester_name"`
	RequesterRole string              `json:"requester_role,omitempty"`
	Category      string              `json:"category"`
	Priority      string              `json:"priority"`
	Description   string              `json:"description"`
	ContentType   string              `json:"content_type,omitempty"`
	Attachments   []AttachmentPayload `json:"attachments,omitempty"`
}

// CommentRequest appends a thread entry.
type CommentRequest struct {
	Body        string              `json:"body"`
	ContentType string              `json:"content_type,omitempty"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

// EditDescriptionRequest rewrites the problem description.
type EditDescriptionRequest struct {
	Description string `json:"description"`
	ContentType string `json:"content_type,omitempty"`
}

// StatusChangeRequest moves a ticket to a new lifecycle state. Comment is
// mandatory when resolving.
type StatusChangeRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// AssignRequest sets the handling admin.
type AssignRequest struct {
	Assignee string `json:"assignee"`
}

// ReopenRequest reopens a resolved ticket.
type ReopenRequest struct {
	Reason string `json:"reason"`
}

// RatingRequest records the requester's satisfaction score.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// AddLookupRequest registers a new option list label.
type AddLookupRequest struct {
	Label string `json:"label"`
}

// TicketSummary is the list-view projection of a ticket.
type TicketSummary struct {
	ID             string     `json:"id"`
	RequesterName  string     `json:"requester_name"`
	RequesterEmail string     `json:"requester_email"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	OpenedAt       time.Time  `json:"opened_at"`
	DueAt          time.Time  `json:"due_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	SLADuration    string     `json:"sla_duration,omitempty"`
	Assignee       *string    `json:"assignee,omitempty"`
	Rating         *int       `json:"rating,omitempty"`
	Version        int        `json:"version"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	Author      string              `json:"author"`
	Body        string              `json:"body"`
	ContentType string              `json:"content_type"`
	CreatedAt   time.Time           `json:"created_at"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

// TicketDetail is the full ticket projection.
type TicketDetail struct {
	TicketSummary
	RequesterRole string              `json:"requester_role,omitempty"`
	Description   string              `json:"description"`
	ContentType   string              `json:"content_type"`
	Comments      []CommentResponse   `json:"comments"`
	Attachments   []AttachmentPayload `json:"attachments,omitempty"`
}

// LookupOptionResponse is one entry of an option list.
type LookupOptionResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTicketSummary projects a domain ticket into its list form.
func FromTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:             t.ID,
		RequesterName:  t.RequesterName,
		RequesterEmail: t.RequesterEmail,
		Category:       t.Category,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		OpenedAt:       t.OpenedAt,
		DueAt:          t.DueAt,
		ResolvedAt:     t.ResolvedAt,
		SLADuration:    t.SLADuration,
		Assignee:       t.Assignee,
		Rating:         t.Rating,
		Version:        t.Version,
		UpdatedAt:      t.UpdatedAt,
	}
}

// FromTicketDetail projects a domain ticket into its detail form.
func FromTicketDetail(t *domain.Ticket) TicketDetail {
	comments := make([]CommentResponse, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, CommentResponse{
			Author:      c.Author,
			Body:        c.Body,
			ContentType: string(c.ContentType),
			CreatedAt:   c.CreatedAt,
			Attachments: fromAttachments(c.Attachments),
		})
	}
	return TicketDetail{
		TicketSummary: FromTicketSummary(t),
		RequesterRole: t.RequesterRole,
		Description:   t.Description,
		ContentType:   string(t.ContentType),
		Comments:      comments,
		Attachments:   fromAttachments(t.Attachments),
	}
}

// FromLookupOption projects a lookup option.
func FromLookupOption(o *domain.LookupOption) LookupOptionResponse {
	return LookupOptionResponse{
		ID:        o.ID,
		Kind:      string(o.Kind),
		Label:     o.Label,
		CreatedAt: o.CreatedAt,
	}
}

// ToAttachments converts payloads into domain attachments.
func ToAttachments(in []AttachmentPayload) []domain.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Attachment{Name: a.Name, ContentRef: a.ContentRef})
	}
	return out
}

func fromAttachments(in []domain.Attachment) []AttachmentPayload {
	if len(in) == 0 {
		return nil
	}
	out := make([]AttachmentPayload, 0, len(in))
	for _, a := range in {
		out = append(out, AttachmentPayload{Name: a.Name, ContentRef: a.ContentRef})
	}
	return out
}
