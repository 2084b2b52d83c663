package workflow

import "github.com/spec-kit/procurement-service/internal/domain"

// ObligationKind names a notification the workflow owes to one role.
type ObligationKind string

const (
	NotifyDept               ObligationKind = "NOTIFY_DEPT"
	NotifyTreasury           ObligationKind = "NOTIFY_TREASURY"
	NotifyRequesterRejected  ObligationKind = "NOTIFY_REQUESTER_REJECTED"
	NotifyRequesterProcessed ObligationKind = "NOTIFY_REQUESTER_PROCESSED"
)

// Obligation is a pending notification for a ticket.
type Obligation struct {
	Kind ObligationKind
}

// Flag returns the notified flag that records the obligation as delivered.
func (k ObligationKind) Flag() domain.NotifiedFlag {
	switch k {
	case NotifyDept:
		return domain.FlagDeptNotified
	case NotifyTreasury:
		return domain.FlagTreasuryNotified
	case NotifyRequesterRejected:
		return domain.FlagRequesterRejectedNotified
	case NotifyRequesterProcessed:
		return domain.FlagRequesterProcessedNotified
	}
	return ""
}

// Recipient returns the role the obligation is addressed to.
func (k ObligationKind) Recipient() domain.Role {
	switch k {
	case NotifyDept:
		return domain.RoleDept
	case NotifyTreasury:
		return domain.RoleTreasury
	default:
		return domain.RoleRequester
	}
}

// Derive returns the obligations implied by the ticket's current state,
// regardless of how it got there.
func Derive(ticket *domain.Ticket) []Obligation {
	if ticket == nil {
		return nil
	}
	switch ticket.PrimaryStatus {
	case domain.StatusAwaitingDeptApproval:
		return []Obligation{{Kind: NotifyDept}}
	case domain.StatusAwaitingTreasuryProcessing:
		return []Obligation{{Kind: NotifyTreasury}}
	case domain.StatusRejectedByDept:
		return []Obligation{{Kind: NotifyRequesterRejected}}
	case domain.StatusCompleted:
		return []Obligation{{Kind: NotifyRequesterProcessed}}
	}
	return nil
}
