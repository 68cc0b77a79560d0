package identity

import (
	"context"
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/findesk/findesk/internal/domain"
)

// IdPClaims is the payload expected from the external identity provider.
type IdPClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// ClaimsResolver resolves a Principal from a token issued by an external
// identity provider. An unverifiable or malformed token resolves to a
// non-admin principal for the presented email rather than an error.
type ClaimsResolver struct {
	secret []byte
}

// NewClaimsResolver builds the resolver with the provider's signing secret.
func NewClaimsResolver(secret string) *ClaimsResolver {
	return &ClaimsResolver{secret: []byte(secret)}
}

// Resolve implements RoleResolver.
func (r *ClaimsResolver) Resolve(_ context.Context, creds Credentials) (domain.Principal, error) {
	fallback := domain.Principal{Email: normalizeEmail(creds.Email)}
	if creds.Token == "" || len(r.secret) == 0 {
		return fallback, nil
	}
	parsed, err := jwt.ParseWithClaims(creds.Token, &IdPClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil {
		return fallback, nil
	}
	claims, ok := parsed.Claims.(*IdPClaims)
	if !ok || !parsed.Valid || claims.Email == "" {
		return fallback, nil
	}
	return domain.Principal{
		Email:   normalizeEmail(claims.Email),
		Name:    claims.Name,
		IsAdmin: claims.Admin,
	}, nil
}
