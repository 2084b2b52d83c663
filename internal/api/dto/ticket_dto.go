package dto

import (
	"time"

	"github.com/spec-kit/procurement-service/internal/domain"
)

// TicketResponse is the operator view of a procurement ticket.
type TicketResponse struct {
	TicketNumber     string                   `json:"ticket_number"`
	RequesterID      string                   `json:"requester_id"`
	RequesterName    string                   `json:"requester_name"`
	ItemDescription  string                   `json:"item_description"`
	Quantity         string                   `json:"quantity"`
	ReferenceLink    string                   `json:"reference_link,omitempty"`
	Justification    string                   `json:"justification,omitempty"`
	PrimaryStatus    domain.PrimaryStatus     `json:"primary_status"`
	TreasuryProgress *domain.TreasuryProgress `json:"treasury_progress"`
	DeptReason       string                   `json:"dept_reason,omitempty"`
	TreasuryReason   string                   `json:"treasury_reason,omitempty"`
	NotifiedFlags    []domain.NotifiedFlag    `json:"notified_flags"`
	CreatedAt        time.Time                `json:"created_at"`
	LastUpdated      time.Time                `json:"last_updated"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID               string                   `json:"id"`
	ActorID          string                   `json:"actor_id"`
	ActorRole        domain.Role              `json:"actor_role"`
	FromStatus       *domain.PrimaryStatus    `json:"from_status"`
	ToStatus         domain.PrimaryStatus     `json:"to_status"`
	TreasuryProgress *domain.TreasuryProgress `json:"treasury_progress,omitempty"`
	Reason           string                   `json:"reason,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}

// PageMeta describes the page returned by a list endpoint.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Count    int `json:"count"`
}

// NewTicketResponse maps a ticket to its response shape.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	flags := t.NotifiedFlags
	if flags == nil {
		flags = []domain.NotifiedFlag{}
	}
	return TicketResponse{
		TicketNumber:     t.TicketNumber,
		RequesterID:      t.RequesterID,
		RequesterName:    t.RequesterName,
		ItemDescription:  t.ItemDescription,
		Quantity:         t.Quantity,
		ReferenceLink:    t.ReferenceLink,
		Justification:    t.Justification,
		PrimaryStatus:    t.PrimaryStatus,
		TreasuryProgress: t.TreasuryProgress,
		DeptReason:       t.DeptReason,
		TreasuryReason:   t.TreasuryReason,
		NotifiedFlags:    flags,
		CreatedAt:        t.CreatedAt,
		LastUpdated:      t.LastUpdated,
	}
}

// NewTicketHistoryResponse maps an audit entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:               h.ID,
		ActorID:          h.ActorID,
		ActorRole:        h.ActorRole,
		FromStatus:       h.FromStatus,
		ToStatus:         h.ToStatus,
		TreasuryProgress: h.TreasuryProgress,
		Reason:           h.Reason,
		CreatedAt:        h.CreatedAt,
	}
}
