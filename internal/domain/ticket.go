package domain

import (
	"strings"
	"time"
)

// PrimaryStatus enumerates the approval lifecycle of a procurement ticket.
type PrimaryStatus string

const (
	StatusAwaitingDeptApproval       PrimaryStatus = "AWAITING_DEPT_APPROVAL"
	StatusAwaitingTreasuryProcessing PrimaryStatus = "AWAITING_TREASURY_PROCESSING"
	StatusRejectedByDept             PrimaryStatus = "REJECTED_BY_DEPT"
	StatusCompleted                  PrimaryStatus = "COMPLETED"
)

// Terminal reports whether no further transition can leave the status.
func (s PrimaryStatus) Terminal() bool {
	return s == StatusRejectedByDept || s == StatusCompleted
}

// Valid reports whether s is a known status.
func (s PrimaryStatus) Valid() bool {
	switch s {
	case StatusAwaitingDeptApproval, StatusAwaitingTreasuryProcessing, StatusRejectedByDept, StatusCompleted:
		return true
	}
	return false
}

// TreasuryProgress tracks treasury processing once the department head approved.
type TreasuryProgress string

const (
	ProgressNotProcessed TreasuryProgress = "NOT_PROCESSED"
	ProgressInProgress   TreasuryProgress = "IN_PROGRESS"
	ProgressProcessed    TreasuryProgress = "PROCESSED"
)

// NotifiedFlag marks a notification obligation that has been claimed for delivery.
type NotifiedFlag string

const (
	FlagDeptNotified               NotifiedFlag = "DEPT_NOTIFIED"
	FlagTreasuryNotified           NotifiedFlag = "TREASURY_NOTIFIED"
	FlagRequesterRejectedNotified  NotifiedFlag = "REQUESTER_REJECTED_NOTIFIED"
	FlagRequesterProcessedNotified NotifiedFlag = "REQUESTER_PROCESSED_NOTIFIED"
)

// Ticket is one procurement request and its approval lifecycle.
type Ticket struct {
	TicketNumber     string
	RequesterID      string
	RequesterName    string
	ItemDescription  string
	Quantity         string
	ReferenceLink    string
	Justification    string
	PrimaryStatus    PrimaryStatus
	TreasuryProgress *TreasuryProgress
	DeptReason       string
	TreasuryReason   string
	NotifiedFlags    []NotifiedFlag
	CreatedAt        time.Time
	LastUpdated      time.Time
}

// HasFlag reports whether the flag has already been recorded on the ticket.
func (t *Ticket) HasFlag(flag NotifiedFlag) bool {
	for _, f := range t.NotifiedFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can derive a new state without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.TreasuryProgress != nil {
		p := *t.TreasuryProgress
		cp.TreasuryProgress = &p
	}
	cp.NotifiedFlags = append([]NotifiedFlag(nil), t.NotifiedFlags...)
	return &cp
}

// NormalizeTicketNumber trims and lower-cases a ticket number for lookups.
func NormalizeTicketNumber(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}

// ProgressPtr is a small helper for optional progress fields.
func ProgressPtr(p TreasuryProgress) *TreasuryProgress {
	return &p
}
