package domain

import "time"

// TicketHistory is an immutable audit trail entry written for every transition.
type TicketHistory struct {
	ID               string
	TicketNumber     string
	ActorID          string
	ActorRole        Role
	FromStatus       *PrimaryStatus
	ToStatus         PrimaryStatus
	TreasuryProgress *TreasuryProgress
	Reason           string
	CreatedAt        time.Time
}
