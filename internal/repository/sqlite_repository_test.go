package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/persistence"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) (*SQLiteTicketRepository, *SQLiteTicketHistoryRepository, *stepClock) {
	t.Helper()
	db, err := persistence.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "tickets.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	clock := &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewSQLiteTicketRepository(db.DB, clock.Now), NewSQLiteTicketHistoryRepository(db.DB), clock
}

func sampleTicket(number string) *domain.Ticket {
	return &domain.Ticket{
		TicketNumber:    number,
		RequesterID:     "req-1",
		RequesterName:   "Ana",
		ItemDescription: "Laptop",
		Quantity:        "2",
		ReferenceLink:   "http://x",
		Justification:   "team",
		PrimaryStatus:   domain.StatusAwaitingDeptApproval,
	}
}

func TestSQLiteCreateAndGet(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := repo.Create(ctx, sampleTicket("1234567")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByNumber(ctx, "  1234567 ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ItemDescription != "Laptop" || got.PrimaryStatus != domain.StatusAwaitingDeptApproval {
		t.Fatalf("unexpected ticket: %+v", got)
	}
	if got.TreasuryProgress != nil {
		t.Fatalf("expected no treasury progress, got %v", *got.TreasuryProgress)
	}
	if len(got.NotifiedFlags) != 0 {
		t.Fatalf("expected no flags, got %v", got.NotifiedFlags)
	}
	if got.LastUpdated.IsZero() || got.CreatedAt.IsZero() {
		t.Fatalf("timestamps not stored: %+v", got)
	}
}

func TestSQLiteGetIsCaseInsensitive(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("ab12")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetByNumber(ctx, "AB12"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	repo, _, _ := newTestStore(t)
	if _, err := repo.GetByNumber(context.Background(), "nope"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestSQLiteCreateDuplicate(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("42")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, sampleTicket("42")); !errors.Is(err, ErrDuplicateTicketNumber) {
		t.Fatalf("expected ErrDuplicateTicketNumber, got %v", err)
	}
}

func TestSQLiteCreateDuplicateIgnoresCase(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("AB12")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, sampleTicket("ab12")); !errors.Is(err, ErrDuplicateTicketNumber) {
		t.Fatalf("expected ErrDuplicateTicketNumber, got %v", err)
	}
}

func TestIsSQLiteDuplicate(t *testing.T) {
	db, err := persistence.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "codes.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	ctx := context.Background()
	if _, err := db.DB.ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, code TEXT UNIQUE, v TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.DB.ExecContext(ctx, `INSERT INTO items VALUES ('a', 'x', 'v')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, pkErr := db.DB.ExecContext(ctx, `INSERT INTO items VALUES ('a', 'y', 'v')`)
	_, uniqueErr := db.DB.ExecContext(ctx, `INSERT INTO items VALUES ('b', 'x', 'v')`)
	_, notNullErr := db.DB.ExecContext(ctx, `INSERT INTO items VALUES ('c', 'z', NULL)`)

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"primary key", pkErr, true},
		{"unique index", uniqueErr, true},
		{"not null", notNullErr, false},
		{"plain error", errors.New("UNIQUE constraint failed: items.id"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatalf("expected a statement error")
			}
			if got := isSQLiteDuplicate(tc.err); got != tc.want {
				t.Fatalf("isSQLiteDuplicate(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestSQLiteConditionalUpdate(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("77")); err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := repo.GetByNumber(ctx, "77")

	expected := domain.StatusAwaitingDeptApproval
	next := domain.StatusAwaitingTreasuryProcessing
	progress := domain.ProgressNotProcessed
	updated, err := repo.Update(ctx, "77", TicketUpdate{
		PrimaryStatus:    &next,
		TreasuryProgress: &progress,
		ExpectedStatus:   &expected,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PrimaryStatus != next || updated.TreasuryProgress == nil || *updated.TreasuryProgress != progress {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.LastUpdated.After(before.LastUpdated) {
		t.Fatalf("lastUpdated not advanced: %v -> %v", before.LastUpdated, updated.LastUpdated)
	}

	rejected := domain.StatusRejectedByDept
	if _, err := repo.Update(ctx, "77", TicketUpdate{PrimaryStatus: &rejected, ExpectedStatus: &expected}); !errors.Is(err, ErrStaleTicket) {
		t.Fatalf("expected ErrStaleTicket, got %v", err)
	}
	if _, err := repo.Update(ctx, "missing", TicketUpdate{PrimaryStatus: &rejected, ExpectedStatus: &expected}); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestSQLiteClaimNotificationOnce(t *testing.T) {
	repo, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("9")); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := repo.ClaimNotification(ctx, "9", domain.FlagDeptNotified)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.ClaimNotification(ctx, "9", domain.FlagDeptNotified)
	if err != nil || claimed {
		t.Fatalf("second claim: claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.ClaimNotification(ctx, "9", domain.FlagTreasuryNotified)
	if err != nil || !claimed {
		t.Fatalf("other flag: claimed=%v err=%v", claimed, err)
	}

	got, _ := repo.GetByNumber(ctx, "9")
	if !got.HasFlag(domain.FlagDeptNotified) || !got.HasFlag(domain.FlagTreasuryNotified) || len(got.NotifiedFlags) != 2 {
		t.Fatalf("unexpected flags: %v", got.NotifiedFlags)
	}

	if _, err := repo.ClaimNotification(ctx, "missing", domain.FlagDeptNotified); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestSQLiteListUpdatedAfter(t *testing.T) {
	repo, _, clock := newTestStore(t)
	ctx := context.Background()
	for _, n := range []string{"1", "2", "3"} {
		if err := repo.Create(ctx, sampleTicket(n)); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
	}
	mark := clock.Now()
	next := domain.StatusAwaitingTreasuryProcessing
	if _, err := repo.Update(ctx, "2", TicketUpdate{PrimaryStatus: &next}); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := repo.List(ctx, TicketFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %d %v", len(all), err)
	}
	changed, err := repo.List(ctx, TicketFilter{UpdatedAfter: &mark})
	if err != nil {
		t.Fatalf("list changed: %v", err)
	}
	if len(changed) != 1 || changed[0].TicketNumber != "2" {
		t.Fatalf("expected only ticket 2, got %+v", changed)
	}
	byStatus, err := repo.List(ctx, TicketFilter{Statuses: []domain.PrimaryStatus{domain.StatusAwaitingDeptApproval}, Limit: 1})
	if err != nil || len(byStatus) != 1 {
		t.Fatalf("list by status: %d %v", len(byStatus), err)
	}
}

func TestSQLiteHistory(t *testing.T) {
	repo, history, _ := newTestStore(t)
	ctx := context.Background()
	if err := repo.Create(ctx, sampleTicket("55")); err != nil {
		t.Fatalf("create: %v", err)
	}
	from := domain.StatusAwaitingDeptApproval
	entries := []*domain.TicketHistory{
		{TicketNumber: "55", ActorID: "req-1", ActorRole: domain.RoleRequester, ToStatus: domain.StatusAwaitingDeptApproval, CreatedAt: time.Unix(100, 0)},
		{TicketNumber: "55", ActorID: "dept", ActorRole: domain.RoleDept, FromStatus: &from, ToStatus: domain.StatusRejectedByDept, Reason: "budget", CreatedAt: time.Unix(200, 0)},
	}
	for _, e := range entries {
		if err := history.Create(ctx, e); err != nil {
			t.Fatalf("history create: %v", err)
		}
		if e.ID == "" {
			t.Fatalf("expected generated id")
		}
	}

	got, err := history.ListByTicket(ctx, "55")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].FromStatus != nil || got[1].FromStatus == nil || *got[1].FromStatus != from {
		t.Fatalf("unexpected from statuses: %+v", got)
	}
	if got[1].Reason != "budget" || got[1].ActorRole != domain.RoleDept {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
}
