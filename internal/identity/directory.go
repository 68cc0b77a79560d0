package identity

import (
	"strings"

	"github.com/findesk/findesk/internal/domain"
)

// Directory resolves canonical display names for comment attribution.
type Directory struct {
	adminNames map[string]string
}

// NewDirectory builds a directory from a small static email-to-name table.
func NewDirectory(adminNames map[string]string) *Directory {
	names := make(map[string]string, len(adminNames))
	for email, name := range adminNames {
		names[strings.ToLower(email)] = name
	}
	return &Directory{adminNames: names}
}

// DisplayName returns the attribution name for a principal acting on a
// ticket. Admins resolve through the static table, falling back to the local
// part of their email; requesters use the name stored on the ticket.
func (d *Directory) DisplayName(p domain.Principal, t *domain.Ticket) string {
	if p.IsAdmin {
		if name, ok := d.adminNames[strings.ToLower(p.Email)]; ok {
			return name
		}
		return localPart(p.Email)
	}
	if t != nil && t.RequesterName != "" {
		return t.RequesterName
	}
	if p.Name != "" {
		return p.Name
	}
	return localPart(p.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
