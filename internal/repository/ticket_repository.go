package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/procurement-service/internal/domain"
)

var (
	// ErrTicketNotFound is returned when no ticket matches the number.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrStaleTicket is returned when a conditional update finds the ticket in another state.
	ErrStaleTicket = errors.New("ticket changed state concurrently")
	// ErrDuplicateTicketNumber is returned when Create collides with an existing number.
	ErrDuplicateTicketNumber = errors.New("ticket number already exists")
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	UpdatedAfter *time.Time
	Statuses     []domain.PrimaryStatus
	RequesterID  *string
	Limit        int // 0 = no limit
	Offset       int
}

// TicketUpdate is a partial update. Nil fields are left untouched.
type TicketUpdate struct {
	PrimaryStatus    *domain.PrimaryStatus
	TreasuryProgress *domain.TreasuryProgress
	DeptReason       *string
	TreasuryReason   *string
	// ExpectedStatus turns the write into a compare-and-set on primary_status.
	ExpectedStatus *domain.PrimaryStatus
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	Update(ctx context.Context, number string, update TicketUpdate) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ClaimNotification records flag on the ticket unless it is already present.
	// It reports whether this call added the flag.
	ClaimNotification(ctx context.Context, number string, flag domain.NotifiedFlag) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool, now func() time.Time) TicketRepository {
	if now == nil {
		now = time.Now
	}
	return &ticketRepository{pool: pool, now: now}
}

const ticketColumns = `ticket_number, requester_id, requester_name, item_description, quantity,
               reference_link, justification, primary_status, treasury_progress, dept_reason,
               treasury_reason, notified_flags, created_at, last_updated`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
        RETURNING last_updated`
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = r.now().UTC()
	}
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.RequesterID,
		ticket.RequesterName,
		ticket.ItemDescription,
		ticket.Quantity,
		ticket.ReferenceLink,
		ticket.Justification,
		string(ticket.PrimaryStatus),
		progressArg(ticket.TreasuryProgress),
		ticket.DeptReason,
		ticket.TreasuryReason,
		flagStrings(ticket.NotifiedFlags),
		ticket.CreatedAt,
	).Scan(&ticket.LastUpdated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTicketNumber
		}
		return err
	}
	ticket.LastUpdated = ticket.LastUpdated.UTC()
	return nil
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE LOWER(ticket_number)=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, domain.NormalizeTicketNumber(number)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return ticket, err
}

func (r *ticketRepository) Update(ctx context.Context, number string, update TicketUpdate) (*domain.Ticket, error) {
	sets, args := update.assignments(func(n int) string { return fmt.Sprintf("$%d", n) })
	// stamped by the database so every writer shares one clock
	sets = append(sets, "last_updated=now()")

	args = append(args, domain.NormalizeTicketNumber(number))
	where := fmt.Sprintf("LOWER(ticket_number)=$%d", len(args))
	if update.ExpectedStatus != nil {
		args = append(args, string(*update.ExpectedStatus))
		where += fmt.Sprintf(" AND primary_status=$%d", len(args))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, ticketColumns)
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missingOrStale(ctx, number, update)
	}
	return ticket, err
}

func (r *ticketRepository) missingOrStale(ctx context.Context, number string, update TicketUpdate) error {
	if update.ExpectedStatus == nil {
		return ErrTicketNotFound
	}
	if _, err := r.GetByNumber(ctx, number); err != nil {
		return err
	}
	return ErrStaleTicket
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses, args := filter.clauses(func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t.UTC() })

	query := fmt.Sprintf(`%s WHERE %s ORDER BY last_updated ASC%s`,
		base, strings.Join(clauses, " AND "), filter.page())

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

func (r *ticketRepository) ClaimNotification(ctx context.Context, number string, flag domain.NotifiedFlag) (bool, error) {
	const query = `
        UPDATE tickets SET notified_flags = array_append(notified_flags, $1), last_updated=now()
        WHERE LOWER(ticket_number)=$2 AND NOT ($1 = ANY(notified_flags))`
	cmd, err := r.pool.Exec(ctx, query, string(flag), domain.NormalizeTicketNumber(number))
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByNumber(ctx, number); err != nil {
		return false, err
	}
	return false, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		status   string
		progress *string
		flags    []string
	)
	if err := row.Scan(
		&ticket.TicketNumber,
		&ticket.RequesterID,
		&ticket.RequesterName,
		&ticket.ItemDescription,
		&ticket.Quantity,
		&ticket.ReferenceLink,
		&ticket.Justification,
		&status,
		&progress,
		&ticket.DeptReason,
		&ticket.TreasuryReason,
		&flags,
		&ticket.CreatedAt,
		&ticket.LastUpdated,
	); err != nil {
		return nil, err
	}
	ticket.PrimaryStatus = domain.PrimaryStatus(status)
	ticket.TreasuryProgress = progressFromString(progress)
	ticket.NotifiedFlags = flagsFromStrings(flags)
	return &ticket, nil
}
