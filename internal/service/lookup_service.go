package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/repository"
	apperrors "github.com/findesk/findesk/pkg/util"
)

// LookupService manages the administered category and department option lists
// that ticket forms draw from.
type LookupService struct {
	lookups repository.LookupRepository
}

// NewLookupService constructs the service.
func NewLookupService(lookups repository.LookupRepository) *LookupService {
	return &LookupService{lookups: lookups}
}

// List returns the options of the given kind, label-ordered.
func (s *LookupService) List(ctx context.Context, kind domain.LookupKind) ([]domain.LookupOption, error) {
	if !domain.ValidLookupKind(kind) {
		return nil, apperrors.NewValidationError("unknown lookup kind", map[string]any{"kind": kind})
	}
	options, err := s.lookups.List(ctx, kind)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return options, nil
}

// AddOption registers a new label on an option list. Admin-only; duplicates
// conflict instead of silently growing the list.
func (s *LookupService) AddOption(ctx context.Context, principal domain.Principal, kind domain.LookupKind, label string) (*domain.LookupOption, error) {
	if !principal.IsAdmin {
		return nil, apperrors.NewForbidden("only admins can manage option lists")
	}
	if !domain.ValidLookupKind(kind) {
		return nil, apperrors.NewValidationError("unknown lookup kind", map[string]any{"kind": kind})
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperrors.NewValidationError("label required", nil)
	}

	option := &domain.LookupOption{
		ID:    uuid.NewString(),
		Kind:  kind,
		Label: label,
	}
	if err := s.lookups.Add(ctx, option); err != nil {
		if errors.Is(err, repository.ErrDuplicateOption) {
			return nil, apperrors.NewConflict("option already exists", map[string]any{"label": label})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	return option, nil
}
