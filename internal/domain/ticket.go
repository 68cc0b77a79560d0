package domain

import (
	"crypto/rand"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ContentType tags description and comment bodies so rich-text and plain-text
// revisions can coexist.
type ContentType string

const (
	ContentTypePlain ContentType = "text/plain"
	ContentTypeHTML  ContentType = "text/html"
)

// Attachment references an uploaded file by its durable URL.
type Attachment struct {
	Name       string `json:"name"`
	ContentRef string `json:"content_ref"`
}

// Comment is one entry of a ticket's append-only thread. Entries are never
// edited or removed once written; insertion order is display order.
type Comment struct {
	Author      string       `json:"author"`
	Body        string       `json:"body"`
	ContentType ContentType  `json:"content_type"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	RequesterName  string
	RequesterEmail string
	RequesterRole  string
	Category       string
	Priority       TicketPriority
	Description    string
	ContentType    ContentType
	Status         TicketStatus
	OpenedAt       time.Time
	DueAt          time.Time
	ResolvedAt     *time.Time
	SLADuration    string
	Assignee       *string
	Comments       []Comment
	Attachments    []Attachment
	Rating         *int
	Version        int
	UpdatedAt      time.Time
}

// IsResolved reports whether the ticket sits in the closed tab.
func (t *Ticket) IsResolved() bool {
	return t.Status == TicketStatusResolved
}

const ticketIDLength = 13

const ticketIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewTicketID generates a 13-character random alphanumeric identifier.
func NewTicketID() string {
	buf := make([]byte, ticketIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = ticketIDAlphabet[int(b)%len(ticketIDAlphabet)]
	}
	return string(buf)
}
