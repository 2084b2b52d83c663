package events

import (
	"time"

	"github.com/spec-kit/procurement-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestSubmitted EventType = "request_submitted"
	EventDeptApproved     EventType = "dept_approved"
	EventDeptRejected     EventType = "dept_rejected"
	EventTreasuryUpdated  EventType = "treasury_updated"
	EventTicketCompleted  EventType = "ticket_completed"
)

// Bus topics.
const (
	TopicRequests      = "requests"
	TopicNotifications = "notifications"
)

// AllEventTypes lists every event the service publishes.
var AllEventTypes = []EventType{
	EventRequestSubmitted,
	EventDeptApproved,
	EventDeptRejected,
	EventTreasuryUpdated,
	EventTicketCompleted,
}

// Topic returns the bus topic an event type is published on.
// Submissions go to requests, every decision goes to notifications.
func Topic(t EventType) string {
	if t == EventRequestSubmitted {
		return TopicRequests
	}
	return TopicNotifications
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketNumber string      `json:"ticket_number"`
	ActorID      string      `json:"actor_id"`
	ActorRole    domain.Role `json:"actor_role"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload,omitempty"`
}

// TransitionPayload describes a ticket state change.
type TransitionPayload struct {
	FromStatus       domain.PrimaryStatus     `json:"from_status,omitempty"`
	ToStatus         domain.PrimaryStatus     `json:"to_status"`
	TreasuryProgress *domain.TreasuryProgress `json:"treasury_progress,omitempty"`
	Reason           string                   `json:"reason,omitempty"`
}

// EventTypeFor picks the event describing a move from one status to another.
// A nil from means the ticket was just submitted.
func EventTypeFor(from *domain.PrimaryStatus, to domain.PrimaryStatus) EventType {
	switch {
	case from == nil:
		return EventRequestSubmitted
	case to == domain.StatusAwaitingTreasuryProcessing && *from == domain.StatusAwaitingDeptApproval:
		return EventDeptApproved
	case to == domain.StatusRejectedByDept:
		return EventDeptRejected
	case to == domain.StatusCompleted:
		return EventTicketCompleted
	default:
		return EventTreasuryUpdated
	}
}
