package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/procurement-service/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketNumber string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_number, actor_id, actor_role, from_status, to_status, treasury_progress, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query,
		history.ID,
		history.TicketNumber,
		history.ActorID,
		string(history.ActorRole),
		statusArg(history.FromStatus),
		string(history.ToStatus),
		progressArg(history.TreasuryProgress),
		history.Reason,
		history.CreatedAt.UTC(),
	)
	return err
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketNumber string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_number, actor_id, actor_role, from_status, to_status, treasury_progress, reason, created_at
        FROM ticket_history WHERE LOWER(ticket_number)=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.NormalizeTicketNumber(ticketNumber))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history  domain.TicketHistory
			role     string
			from     *string
			to       string
			progress *string
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketNumber,
			&history.ActorID,
			&role,
			&from,
			&to,
			&progress,
			&history.Reason,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.ActorRole = domain.Role(role)
		history.FromStatus = statusFromString(from)
		history.ToStatus = domain.PrimaryStatus(to)
		history.TreasuryProgress = progressFromString(progress)
		result = append(result, history)
	}
	return result, rows.Err()
}

func statusArg(s *domain.PrimaryStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func statusFromString(s *string) *domain.PrimaryStatus {
	if s == nil || *s == "" {
		return nil
	}
	v := domain.PrimaryStatus(*s)
	return &v
}
