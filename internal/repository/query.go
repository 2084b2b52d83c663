package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/procurement-service/internal/domain"
)

// placeholder renders the n-th bind parameter for a SQL dialect.
type placeholder func(n int) string

func (u TicketUpdate) assignments(ph placeholder) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if u.PrimaryStatus != nil {
		args = append(args, string(*u.PrimaryStatus))
		sets = append(sets, "primary_status="+ph(len(args)))
	}
	if u.TreasuryProgress != nil {
		args = append(args, string(*u.TreasuryProgress))
		sets = append(sets, "treasury_progress="+ph(len(args)))
	}
	if u.DeptReason != nil {
		args = append(args, *u.DeptReason)
		sets = append(sets, "dept_reason="+ph(len(args)))
	}
	if u.TreasuryReason != nil {
		args = append(args, *u.TreasuryReason)
		sets = append(sets, "treasury_reason="+ph(len(args)))
	}
	return sets, args
}

func (f TicketFilter) clauses(ph placeholder, timeArg func(time.Time) any) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.UpdatedAfter != nil {
		args = append(args, timeArg(*f.UpdatedAfter))
		clauses = append(clauses, "last_updated > "+ph(len(args)))
	}
	if f.RequesterID != nil {
		args = append(args, *f.RequesterID)
		clauses = append(clauses, "requester_id="+ph(len(args)))
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, status := range f.Statuses {
			args = append(args, string(status))
			placeholders[i] = ph(len(args))
		}
		clauses = append(clauses, fmt.Sprintf("primary_status IN (%s)", strings.Join(placeholders, ",")))
	}
	return clauses, args
}

func (f TicketFilter) page() string {
	if f.Limit <= 0 {
		return ""
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, offset)
}

func progressArg(p *domain.TreasuryProgress) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func progressFromString(s *string) *domain.TreasuryProgress {
	if s == nil || *s == "" {
		return nil
	}
	p := domain.TreasuryProgress(*s)
	return &p
}

func flagStrings(flags []domain.NotifiedFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}

func flagsFromStrings(values []string) []domain.NotifiedFlag {
	out := make([]domain.NotifiedFlag, 0, len(values))
	for _, v := range values {
		out = append(out, domain.NotifiedFlag(v))
	}
	return out
}
