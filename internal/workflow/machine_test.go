package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/procurement-service/internal/command"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

func ticketIn(status domain.PrimaryStatus) *domain.Ticket {
	t := &domain.Ticket{
		TicketNumber:    "4821",
		RequesterID:     "300",
		ItemDescription: "Projector",
		Quantity:        "1 unit",
		PrimaryStatus:   status,
	}
	switch status {
	case domain.StatusAwaitingTreasuryProcessing:
		t.TreasuryProgress = domain.ProgressPtr(domain.ProgressNotProcessed)
	case domain.StatusCompleted:
		t.TreasuryProgress = domain.ProgressPtr(domain.ProgressProcessed)
	case domain.StatusRejectedByDept:
		t.DeptReason = "no budget"
	}
	return t
}

var (
	approve  = command.Intent{Kind: command.IntentDeptDecision, Action: command.ActionApprove, TicketNumber: "4821"}
	reject   = command.Intent{Kind: command.IntentDeptDecision, Action: command.ActionReject, TicketNumber: "4821", Reason: "budget unavailable"}
	reason   = command.Intent{Kind: command.IntentContinueRejectionReason, Action: command.ActionReject, TicketNumber: "4821", Reason: "late"}
	progress = command.Intent{Kind: command.IntentTreasuryUpdate, Code: command.CodeInProgress, TicketNumber: "4821"}
	notYet   = command.Intent{Kind: command.IntentTreasuryUpdate, Code: command.CodeNotProcessed, TicketNumber: "4821"}
	done     = command.Intent{Kind: command.IntentTreasuryUpdate, Code: command.CodeProcessed, TicketNumber: "4821", Reason: "delivered"}
	status   = command.Intent{Kind: command.IntentCheckStatus, TicketNumber: "4821"}
)

func TestNewTicket(t *testing.T) {
	form := command.SubmissionForm{FullName: "Jane", Item: "Projector", Quantity: "1 unit", Link: "http://x", Reason: "meeting"}
	now := time.Unix(1700000000, 0)
	ticket, obligations := NewTicket("4821", "300", form, now)

	if ticket.PrimaryStatus != domain.StatusAwaitingDeptApproval || ticket.TreasuryProgress != nil {
		t.Fatalf("unexpected initial state: %+v", ticket)
	}
	if ticket.ItemDescription != "Projector" || ticket.Justification != "meeting" || ticket.RequesterName != "Jane" {
		t.Fatalf("form not copied: %+v", ticket)
	}
	if len(obligations) != 1 || obligations[0].Kind != NotifyDept {
		t.Fatalf("expected dept notification, got %+v", obligations)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name       string
		from       domain.PrimaryStatus
		intent     command.Intent
		role       domain.Role
		to         domain.PrimaryStatus
		progress   *domain.TreasuryProgress
		obligation ObligationKind
	}{
		{"approve", domain.StatusAwaitingDeptApproval, approve, domain.RoleDept, domain.StatusAwaitingTreasuryProcessing, domain.ProgressPtr(domain.ProgressNotProcessed), NotifyTreasury},
		{"reject", domain.StatusAwaitingDeptApproval, reject, domain.RoleDept, domain.StatusRejectedByDept, nil, NotifyRequesterRejected},
		{"reject via follow-up reason", domain.StatusAwaitingDeptApproval, reason, domain.RoleDept, domain.StatusRejectedByDept, nil, NotifyRequesterRejected},
		{"treasury not processed", domain.StatusAwaitingTreasuryProcessing, notYet, domain.RoleTreasury, domain.StatusAwaitingTreasuryProcessing, domain.ProgressPtr(domain.ProgressNotProcessed), ""},
		{"treasury in progress", domain.StatusAwaitingTreasuryProcessing, progress, domain.RoleTreasury, domain.StatusAwaitingTreasuryProcessing, domain.ProgressPtr(domain.ProgressInProgress), ""},
		{"treasury processed", domain.StatusAwaitingTreasuryProcessing, done, domain.RoleTreasury, domain.StatusCompleted, domain.ProgressPtr(domain.ProgressProcessed), NotifyRequesterProcessed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := ticketIn(tc.from)
			next, obligations, err := Transition(before, tc.intent, tc.role)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if next.PrimaryStatus != tc.to {
				t.Fatalf("expected %s, got %s", tc.to, next.PrimaryStatus)
			}
			if (tc.progress == nil) != (next.TreasuryProgress == nil) ||
				(tc.progress != nil && *tc.progress != *next.TreasuryProgress) {
				t.Fatalf("unexpected progress %v", next.TreasuryProgress)
			}
			if tc.obligation == "" && len(obligations) != 0 {
				t.Fatalf("expected no obligations, got %+v", obligations)
			}
			if tc.obligation != "" && (len(obligations) != 1 || obligations[0].Kind != tc.obligation) {
				t.Fatalf("expected %s, got %+v", tc.obligation, obligations)
			}
			if before.PrimaryStatus != tc.from {
				t.Fatalf("input ticket was mutated")
			}
		})
	}
}

func TestTransitionReasons(t *testing.T) {
	next, _, _ := Transition(ticketIn(domain.StatusAwaitingDeptApproval), reject, domain.RoleDept)
	if next.DeptReason != "budget unavailable" {
		t.Fatalf("unexpected dept reason %q", next.DeptReason)
	}
	next, _, _ = Transition(ticketIn(domain.StatusAwaitingTreasuryProcessing), progress, domain.RoleTreasury)
	if next.TreasuryReason != ReasonInProgress {
		t.Fatalf("expected default reason, got %q", next.TreasuryReason)
	}
	next, _, _ = Transition(ticketIn(domain.StatusAwaitingTreasuryProcessing), done, domain.RoleTreasury)
	if next.TreasuryReason != "delivered" {
		t.Fatalf("expected explicit reason, got %q", next.TreasuryReason)
	}
}

func TestTransitionRejectRequiresReason(t *testing.T) {
	noReason := reject
	noReason.Reason = "  "
	if _, _, err := Transition(ticketIn(domain.StatusAwaitingDeptApproval), noReason, domain.RoleDept); !errors.Is(err, errorutil.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestTransitionRoleCheckedBeforeState(t *testing.T) {
	// completed ticket plus wrong role must report the role problem
	_, _, err := Transition(ticketIn(domain.StatusCompleted), approve, domain.RoleTreasury)
	if !errors.Is(err, errorutil.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, _, err = Transition(ticketIn(domain.StatusRejectedByDept), done, domain.RoleDept)
	if !errors.Is(err, errorutil.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestTransitionTotality(t *testing.T) {
	states := []domain.PrimaryStatus{
		domain.StatusAwaitingDeptApproval,
		domain.StatusAwaitingTreasuryProcessing,
		domain.StatusRejectedByDept,
		domain.StatusCompleted,
	}
	intents := []command.Intent{
		approve, reject, reason, notYet, progress, done,
		{Kind: command.IntentSubmitForm},
		{Kind: command.IntentHelp},
		{Kind: command.IntentUnrecognized},
	}
	roles := []domain.Role{domain.RoleRequester, domain.RoleDept, domain.RoleTreasury}

	legal := map[string]bool{}
	for _, key := range []string{
		"AWAITING_DEPT_APPROVAL|DEPT_DECISION|DEPT_HEAD",
		"AWAITING_DEPT_APPROVAL|CONTINUE_REJECTION_REASON|DEPT_HEAD",
		"AWAITING_TREASURY_PROCESSING|TREASURY_UPDATE|TREASURY",
	} {
		legal[key] = true
	}

	for _, s := range states {
		for _, in := range intents {
			for _, r := range roles {
				next, obligations, err := Transition(ticketIn(s), in, r)
				key := string(s) + "|" + string(in.Kind) + "|" + string(r)
				if legal[key] {
					if err != nil {
						t.Errorf("%s: unexpected error %v", key, err)
					}
					continue
				}
				if err == nil {
					t.Errorf("%s: expected error, got %+v", key, next)
					continue
				}
				if len(obligations) != 0 || next != nil {
					t.Errorf("%s: error path produced state or obligations", key)
				}
				if !errors.Is(err, errorutil.ErrInvalidStateTransition) && !errors.Is(err, errorutil.ErrUnauthorized) {
					t.Errorf("%s: unexpected error kind %v", key, err)
				}
			}
		}
	}
}

func TestTreasuryProgressOnlyWhileAwaitingTreasury(t *testing.T) {
	form := command.SubmissionForm{FullName: "Jane", Item: "Projector", Quantity: "1", Link: "l", Reason: "r"}
	ticket, _ := NewTicket("1", "300", form, time.Now())
	check := func(tk *domain.Ticket) {
		t.Helper()
		switch tk.PrimaryStatus {
		case domain.StatusAwaitingDeptApproval, domain.StatusRejectedByDept:
			if tk.TreasuryProgress != nil {
				t.Fatalf("progress must be unset in %s", tk.PrimaryStatus)
			}
		case domain.StatusCompleted:
			if tk.TreasuryProgress == nil || *tk.TreasuryProgress != domain.ProgressProcessed {
				t.Fatalf("completed ticket must carry PROCESSED")
			}
		}
	}
	check(ticket)

	rejected, _, _ := Transition(ticket, reject, domain.RoleDept)
	check(rejected)

	approved, _, _ := Transition(ticket, approve, domain.RoleDept)
	check(approved)
	updated, _, _ := Transition(approved, progress, domain.RoleTreasury)
	check(updated)
	completed, _, _ := Transition(updated, done, domain.RoleTreasury)
	check(completed)

	// no path leads back to dept approval
	for _, in := range []command.Intent{approve, reject, notYet, progress, done} {
		for _, r := range []domain.Role{domain.RoleDept, domain.RoleTreasury} {
			if next, _, err := Transition(completed, in, r); err == nil && next.PrimaryStatus == domain.StatusAwaitingDeptApproval {
				t.Fatalf("ticket revisited dept approval")
			}
		}
	}
}

func TestCheckStatusIsReadOnly(t *testing.T) {
	for _, r := range []domain.Role{domain.RoleRequester, domain.RoleDept, domain.RoleTreasury} {
		before := ticketIn(domain.StatusCompleted)
		next, obligations, err := Transition(before, status, r)
		if err != nil || len(obligations) != 0 {
			t.Fatalf("check status: %v %+v", err, obligations)
		}
		if Changed(before, next) {
			t.Fatalf("check status changed the ticket")
		}
	}
}

func TestDerive(t *testing.T) {
	cases := map[domain.PrimaryStatus]ObligationKind{
		domain.StatusAwaitingDeptApproval:       NotifyDept,
		domain.StatusAwaitingTreasuryProcessing: NotifyTreasury,
		domain.StatusRejectedByDept:             NotifyRequesterRejected,
		domain.StatusCompleted:                  NotifyRequesterProcessed,
	}
	for s, want := range cases {
		got := Derive(ticketIn(s))
		if len(got) != 1 || got[0].Kind != want {
			t.Errorf("%s: expected %s, got %+v", s, want, got)
		}
		if got[0].Kind.Flag() == "" {
			t.Errorf("%s: obligation has no flag", s)
		}
	}
	if Derive(nil) != nil {
		t.Fatalf("nil ticket should derive nothing")
	}
}
