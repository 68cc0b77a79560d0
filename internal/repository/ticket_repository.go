package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findesk/findesk/internal/domain"
)

// Sentinel errors surfaced by repositories; the service layer maps them onto
// the DomainError taxonomy.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
)

// TicketFilter captures listing parameters. Resolved selects the open/closed
// tab: false lists everything not yet resolved, true the resolved tickets.
type TicketFilter struct {
	RequesterEmail *string
	Priority       *domain.TicketPriority
	Category       *string
	Assignee       *string
	Resolved       *bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	// Update writes the full ticket document guarded by its version counter
	// and bumps the counter on success. A stale version yields
	// ErrVersionConflict rather than a silent last-write-wins.
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	// List returns tickets ordered by opening instant descending, id
	// descending as tie-breaker, a stable total order.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, requester_name, requester_email, requester_role, category, priority,
               description, content_type, status, opened_at, due_at, resolved_at, sla_duration,
               assignee, comments, attachments, rating, version, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	comments, attachments, err := encodeDocuments(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, requester_name, requester_email, requester_role, category, priority,
            description, content_type, status, opened_at, due_at, resolved_at, sla_duration,
            assignee, comments, attachments, rating, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.RequesterRole,
		ticket.Category,
		ticket.Priority,
		ticket.Description,
		ticket.ContentType,
		ticket.Status,
		ticket.OpenedAt,
		ticket.DueAt,
		ticket.ResolvedAt,
		ticket.SLADuration,
		ticket.Assignee,
		comments,
		attachments,
		ticket.Rating,
		ticket.Version,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	comments, attachments, err := encodeDocuments(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET requester_name=$1, requester_role=$2, category=$3, priority=$4,
            description=$5, content_type=$6, status=$7, due_at=$8, resolved_at=$9,
            sla_duration=$10, assignee=$11, comments=$12, attachments=$13, rating=$14,
            version=version+1, updated_at=NOW()
        WHERE id=$15 AND version=$16`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.RequesterName,
		ticket.RequesterRole,
		ticket.Category,
		ticket.Priority,
		ticket.Description,
		ticket.ContentType,
		ticket.Status,
		ticket.DueAt,
		ticket.ResolvedAt,
		ticket.SLADuration,
		ticket.Assignee,
		comments,
		attachments,
		ticket.Rating,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, getErr := r.Get(ctx, ticket.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterEmail != nil {
		args = append(args, strings.ToLower(*filter.RequesterEmail))
		clauses = append(clauses, fmt.Sprintf("LOWER(requester_email)=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Assignee != nil {
		args = append(args, *filter.Assignee)
		clauses = append(clauses, fmt.Sprintf("assignee=$%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, domain.TicketStatusResolved)
		op := "!="
		if *filter.Resolved {
			op = "="
		}
		clauses = append(clauses, fmt.Sprintf("status%s$%d", op, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY opened_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func encodeDocuments(ticket *domain.Ticket) (comments, attachments []byte, err error) {
	comments, err = json.Marshal(ticket.Comments)
	if err != nil {
		return nil, nil, err
	}
	attachments, err = json.Marshal(ticket.Attachments)
	if err != nil {
		return nil, nil, err
	}
	return comments, attachments, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var comments, attachments []byte
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.RequesterRole,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Description,
		&ticket.ContentType,
		&ticket.Status,
		&ticket.OpenedAt,
		&ticket.DueAt,
		&ticket.ResolvedAt,
		&ticket.SLADuration,
		&ticket.Assignee,
		&comments,
		&attachments,
		&ticket.Rating,
		&ticket.Version,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &ticket.Comments); err != nil {
			return nil, err
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &ticket.Attachments); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}
