package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/procurement-service/internal/domain"
)

// SQLiteTicketRepository implements TicketRepository on the embedded store.
type SQLiteTicketRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTicketRepository builds the embedded ticket repository.
func NewSQLiteTicketRepository(db *sql.DB, now func() time.Time) *SQLiteTicketRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLiteTicketRepository{db: db, now: now}
}

func sqlitePlaceholder(int) string { return "?" }

func (r *SQLiteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	now := r.now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.LastUpdated = now
	flags, err := json.Marshal(flagStrings(ticket.NotifiedFlags))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(ticket.TicketNumber),
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
		string(flags),
		ticket.CreatedAt.UnixNano(),
		ticket.LastUpdated.UnixNano(),
	)
	if err != nil {
		if isSQLiteDuplicate(err) {
			return ErrDuplicateTicketNumber
		}
		return fmt.Errorf("ticket store: create: %w", err)
	}
	return nil
}

func isSQLiteDuplicate(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func (r *SQLiteTicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = ?`, strings.TrimSpace(number))
	ticket, err := scanSQLiteTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return ticket, err
}

func (r *SQLiteTicketRepository) Update(ctx context.Context, number string, update TicketUpdate) (*domain.Ticket, error) {
	sets, args := update.assignments(sqlitePlaceholder)
	sets = append(sets, "last_updated = ?")
	args = append(args, r.now().UTC().UnixNano(), strings.TrimSpace(number))
	where := "ticket_number = ?"
	if update.ExpectedStatus != nil {
		where += " AND primary_status = ?"
		args = append(args, string(*update.ExpectedStatus))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, ticketColumns)
	ticket, err := scanSQLiteTicket(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if update.ExpectedStatus == nil {
			return nil, ErrTicketNotFound
		}
		if _, getErr := r.GetByNumber(ctx, number); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleTicket
	}
	if err != nil {
		return nil, fmt.Errorf("ticket store: update: %w", err)
	}
	return ticket, nil
}

func (r *SQLiteTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filter.clauses(sqlitePlaceholder, func(t time.Time) any { return t.UTC().UnixNano() })
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY last_updated ASC%s`,
		ticketColumns, strings.Join(clauses, " AND "), filter.page())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *SQLiteTicketRepository) ClaimNotification(ctx context.Context, number string, flag domain.NotifiedFlag) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET notified_flags = json_insert(notified_flags, '$[#]', ?), last_updated = ?
		WHERE ticket_number = ?
		  AND NOT EXISTS (SELECT 1 FROM json_each(tickets.notified_flags) WHERE json_each.value = ?)`,
		string(flag), r.now().UTC().UnixNano(), strings.TrimSpace(number), string(flag))
	if err != nil {
		return false, fmt.Errorf("ticket store: claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := r.GetByNumber(ctx, number); err != nil {
		return false, err
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		status      string
		progress    sql.NullString
		flags       string
		createdAt   int64
		lastUpdated int64
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
		&createdAt,
		&lastUpdated,
	); err != nil {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal([]byte(flags), &values); err != nil {
		return nil, fmt.Errorf("ticket store: decode flags: %w", err)
	}
	ticket.PrimaryStatus = domain.PrimaryStatus(status)
	if progress.Valid {
		ticket.TreasuryProgress = progressFromString(&progress.String)
	}
	ticket.NotifiedFlags = flagsFromStrings(values)
	ticket.CreatedAt = time.Unix(0, createdAt).UTC()
	ticket.LastUpdated = time.Unix(0, lastUpdated).UTC()
	return &ticket, nil
}

// SQLiteTicketHistoryRepository implements TicketHistoryRepository on the embedded store.
type SQLiteTicketHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteTicketHistoryRepository builds the embedded history repository.
func NewSQLiteTicketHistoryRepository(db *sql.DB) *SQLiteTicketHistoryRepository {
	return &SQLiteTicketHistoryRepository{db: db}
}

func (r *SQLiteTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ticket_history (id, ticket_number, actor_id, actor_role, from_status, to_status, treasury_progress, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		history.ID,
		history.TicketNumber,
		history.ActorID,
		string(history.ActorRole),
		statusArg(history.FromStatus),
		string(history.ToStatus),
		progressArg(history.TreasuryProgress),
		history.Reason,
		history.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ticket store: history: %w", err)
	}
	return nil
}

func (r *SQLiteTicketHistoryRepository) ListByTicket(ctx context.Context, ticketNumber string) ([]domain.TicketHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ticket_number, actor_id, actor_role, from_status, to_status, treasury_progress, reason, created_at
		FROM ticket_history WHERE ticket_number = ? COLLATE NOCASE ORDER BY created_at ASC`, strings.TrimSpace(ticketNumber))
	if err != nil {
		return nil, fmt.Errorf("ticket store: history: %w", err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history   domain.TicketHistory
			role      string
			from      sql.NullString
			to        string
			progress  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&history.ID, &history.TicketNumber, &history.ActorID, &role,
			&from, &to, &progress, &history.Reason, &createdAt); err != nil {
			return nil, err
		}
		history.ActorRole = domain.Role(role)
		if from.Valid {
			history.FromStatus = statusFromString(&from.String)
		}
		history.ToStatus = domain.PrimaryStatus(to)
		if progress.Valid {
			history.TreasuryProgress = progressFromString(&progress.String)
		}
		history.CreatedAt = time.Unix(0, createdAt).UTC()
		result = append(result, history)
	}
	return result, rows.Err()
}
