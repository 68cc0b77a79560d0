// Package identity maps authenticated credentials to a Principal and resolves
// display names for comment attribution. Two interchangeable resolver
// strategies exist: a static admin allowlist guarded by a shared passphrase,
// and claims issued by an external identity provider. Both fail open toward
// non-admin on any ambiguity; that mirrors the application's historical
// permissive fallback and is deliberately not treated as a hard auth failure.
package identity

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/findesk/findesk/internal/domain"
)

// Credentials carries what the caller presented at login. For the claims
// strategy, Token holds the identity provider's JWT.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// RoleResolver resolves login credentials to a Principal.
type RoleResolver interface {
	Resolve(ctx context.Context, creds Credentials) (domain.Principal, error)
}

// AllowlistResolver grants admin to allowlisted emails presenting the shared
// admin passphrase. Anyone else, including allowlisted emails with a wrong
// passphrase, resolves to a regular requester.
type AllowlistResolver struct {
	adminEmails    map[string]struct{}
	passphraseHash string
}

// NewAllowlistResolver builds the resolver from the configured allowlist and
// the bcrypt hash of the shared passphrase.
func NewAllowlistResolver(emails []string, passphraseHash string) *AllowlistResolver {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		set[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &AllowlistResolver{adminEmails: set, passphraseHash: passphraseHash}
}

// Resolve implements RoleResolver.
func (r *AllowlistResolver) Resolve(_ context.Context, creds Credentials) (domain.Principal, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	principal := domain.Principal{Email: email}
	if _, listed := r.adminEmails[email]; !listed {
		return principal, nil
	}
	if r.passphraseHash == "" {
		return principal, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(r.passphraseHash), []byte(creds.Password)); err != nil {
		return principal, nil
	}
	principal.IsAdmin = true
	return principal, nil
}
