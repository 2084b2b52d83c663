package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/procurement-service/internal/command"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// Default treasury reasons used when the update omits one.
const (
	ReasonNotProcessed = "Not processed yet"
	ReasonInProgress   = "In progress"
	ReasonProcessed    = "Processed"
)

// NewTicket builds a submitted ticket and the obligation to ask the
// department head for approval.
func NewTicket(number, requesterID string, form command.SubmissionForm, now time.Time) (*domain.Ticket, []Obligation) {
	ticket := &domain.Ticket{
		TicketNumber:    number,
		RequesterID:     requesterID,
		RequesterName:   form.FullName,
		ItemDescription: form.Item,
		Quantity:        form.Quantity,
		ReferenceLink:   form.Link,
		Justification:   form.Reason,
		PrimaryStatus:   domain.StatusAwaitingDeptApproval,
		NotifiedFlags:   []domain.NotifiedFlag{},
		CreatedAt:       now,
		LastUpdated:     now,
	}
	return ticket, []Obligation{{Kind: NotifyDept}}
}

// Transition applies an intent from an actor to a ticket. It never mutates
// the input; on error the ticket is unchanged and no obligations are owed.
func Transition(ticket *domain.Ticket, intent command.Intent, role domain.Role) (*domain.Ticket, []Obligation, error) {
	if ticket == nil {
		return nil, nil, errorutil.NewNotFound("ticket", nil)
	}

	switch intent.Kind {
	case command.IntentCheckStatus:
		return ticket.Clone(), nil, nil

	case command.IntentDeptDecision, command.IntentContinueRejectionReason:
		if role != domain.RoleDept {
			return nil, nil, errorutil.NewUnauthorized("only the department head can approve or reject requests")
		}
		if ticket.PrimaryStatus != domain.StatusAwaitingDeptApproval {
			return nil, nil, invalid(ticket)
		}
		next := ticket.Clone()
		if intent.Kind == command.IntentDeptDecision && intent.Action == command.ActionApprove {
			next.PrimaryStatus = domain.StatusAwaitingTreasuryProcessing
			next.TreasuryProgress = domain.ProgressPtr(domain.ProgressNotProcessed)
			return next, []Obligation{{Kind: NotifyTreasury}}, nil
		}
		if intent.Kind == command.IntentDeptDecision && intent.Action != command.ActionReject {
			return nil, nil, errorutil.NewParseError("unknown department decision")
		}
		reason := strings.TrimSpace(intent.Reason)
		if reason == "" {
			return nil, nil, errorutil.NewParseError("a rejection reason is required")
		}
		next.PrimaryStatus = domain.StatusRejectedByDept
		next.TreasuryProgress = nil
		next.DeptReason = reason
		return next, []Obligation{{Kind: NotifyRequesterRejected}}, nil

	case command.IntentTreasuryUpdate:
		if role != domain.RoleTreasury {
			return nil, nil, errorutil.NewUnauthorized("only treasury can update processing progress")
		}
		if ticket.PrimaryStatus != domain.StatusAwaitingTreasuryProcessing {
			return nil, nil, invalid(ticket)
		}
		progress, fallback, ok := treasuryProgress(intent.Code)
		if !ok {
			return nil, nil, errorutil.NewParseError("treasury code must be 1, 2 or 3")
		}
		next := ticket.Clone()
		next.TreasuryProgress = domain.ProgressPtr(progress)
		next.TreasuryReason = strings.TrimSpace(intent.Reason)
		if next.TreasuryReason == "" {
			next.TreasuryReason = fallback
		}
		if progress != domain.ProgressProcessed {
			return next, nil, nil
		}
		next.PrimaryStatus = domain.StatusCompleted
		return next, []Obligation{{Kind: NotifyRequesterProcessed}}, nil
	}

	return nil, nil, invalid(ticket)
}

func treasuryProgress(code command.TreasuryCode) (domain.TreasuryProgress, string, bool) {
	switch code {
	case command.CodeNotProcessed:
		return domain.ProgressNotProcessed, ReasonNotProcessed, true
	case command.CodeInProgress:
		return domain.ProgressInProgress, ReasonInProgress, true
	case command.CodeProcessed:
		return domain.ProgressProcessed, ReasonProcessed, true
	}
	return "", "", false
}

func invalid(ticket *domain.Ticket) error {
	return errorutil.NewInvalidTransition(ticket.TicketNumber, string(ticket.PrimaryStatus))
}

// Changed reports whether a transition result differs from the stored
// ticket and therefore needs a write.
func Changed(before, after *domain.Ticket) bool {
	if before == nil || after == nil {
		return false
	}
	if before.PrimaryStatus != after.PrimaryStatus ||
		before.DeptReason != after.DeptReason ||
		before.TreasuryReason != after.TreasuryReason {
		return true
	}
	if (before.TreasuryProgress == nil) != (after.TreasuryProgress == nil) {
		return true
	}
	return before.TreasuryProgress != nil && *before.TreasuryProgress != *after.TreasuryProgress
}
