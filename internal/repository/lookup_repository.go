package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findesk/findesk/internal/domain"
)

// ErrDuplicateOption marks an attempt to add an already present label.
var ErrDuplicateOption = errors.New("lookup option already exists")

// LookupRepository manages the persisted category/department option lists.
type LookupRepository interface {
	List(ctx context.Context, kind domain.LookupKind) ([]domain.LookupOption, error)
	Add(ctx context.Context, option *domain.LookupOption) error
}

type lookupRepository struct {
	pool *pgxpool.Pool
}

// NewLookupRepository instantiates the Postgres-backed repository.
func NewLookupRepository(pool *pgxpool.Pool) LookupRepository {
	return &lookupRepository{pool: pool}
}

func (r *lookupRepository) List(ctx context.Context, kind domain.LookupKind) ([]domain.LookupOption, error) {
	const query = `
        SELECT id, kind, label, created_at
        FROM lookup_options WHERE kind=$1 ORDER BY label ASC`
	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LookupOption
	for rows.Next() {
		var option domain.LookupOption
		if err := rows.Scan(&option.ID, &option.Kind, &option.Label, &option.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, option)
	}
	return result, rows.Err()
}

func (r *lookupRepository) Add(ctx context.Context, option *domain.LookupOption) error {
	const query = `
        INSERT INTO lookup_options (id, kind, label)
        VALUES ($1,$2,$3)
        ON CONFLICT (kind, label) DO NOTHING
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, option.ID, option.Kind, option.Label).Scan(&option.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateOption
	}
	return err
}

type memoryLookupRepository struct {
	mu      sync.RWMutex
	options map[domain.LookupKind][]domain.LookupOption
}

// NewMemoryLookupRepository builds an in-memory lookup repository, optionally
// seeded with initial labels per kind.
func NewMemoryLookupRepository(seed map[domain.LookupKind][]string) LookupRepository {
	repo := &memoryLookupRepository{options: make(map[domain.LookupKind][]domain.LookupOption)}
	for kind, labels := range seed {
		for _, label := range labels {
			repo.options[kind] = append(repo.options[kind], domain.LookupOption{
				ID:        uuid.NewString(),
				Kind:      kind,
				Label:     label,
				CreatedAt: time.Now(),
			})
		}
	}
	return repo
}

func (r *memoryLookupRepository) List(_ context.Context, kind domain.LookupKind) ([]domain.LookupOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]domain.LookupOption(nil), r.options[kind]...)
	return out, nil
}

func (r *memoryLookupRepository) Add(_ context.Context, option *domain.LookupOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.options[option.Kind] {
		if strings.EqualFold(existing.Label, option.Label) {
			return ErrDuplicateOption
		}
	}
	option.CreatedAt = time.Now()
	r.options[option.Kind] = append(r.options[option.Kind], *option)
	return nil
}
