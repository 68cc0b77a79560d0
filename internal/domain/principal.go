package domain

import "strings"

// Principal represents the authenticated caller of a lifecycle operation.
type Principal struct {
	Email   string
	Name    string
	IsAdmin bool
}

// Owns reports whether the principal is the ticket's requester.
// Requester email is the ownership key for access control.
func (p Principal) Owns(t *Ticket) bool {
	return strings.EqualFold(p.Email, t.RequesterEmail)
}

// CanAccess reports whether the principal may observe or mutate the ticket.
func (p Principal) CanAccess(t *Ticket) bool {
	return p.IsAdmin || p.Owns(t)
}
