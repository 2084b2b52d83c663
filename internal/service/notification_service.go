package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/procurement-service/internal/chat"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/events"
	"github.com/spec-kit/procurement-service/internal/observability"
	"github.com/spec-kit/procurement-service/internal/repository"
	"github.com/spec-kit/procurement-service/internal/workflow"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// Outcome is the result of dispatching one obligation.
type Outcome string

const (
	OutcomeSent    Outcome = "SENT"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
)

// NotificationService delivers notification obligations at most once per
// ticket and obligation kind.
type NotificationService struct {
	tickets   repository.TicketRepository
	transport chat.Transport
	bindings  domain.RoleBindings
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(tickets repository.TicketRepository, transport chat.Transport, bindings domain.RoleBindings, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		tickets:   tickets,
		transport: transport,
		bindings:  bindings,
		logger:    logger,
		metrics:   metrics,
	}
}

// Dispatch claims the obligation's flag on the ticket and, if this call won
// the claim, sends the message. A lost claim is Skipped. A failed send is not
// retried and the flag stays set.
func (n *NotificationService) Dispatch(ctx context.Context, obligation workflow.Obligation, ticket *domain.Ticket) (Outcome, error) {
	logger := n.logger.With(
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("obligation", string(obligation.Kind)))

	recipient := n.recipient(obligation.Kind, ticket)
	if recipient == "" {
		n.record(obligation, OutcomeFailed)
		return OutcomeFailed, errorutil.NewInternalError(fmt.Errorf("no recipient for %s", obligation.Kind))
	}

	claimed, err := n.tickets.ClaimNotification(ctx, ticket.TicketNumber, obligation.Kind.Flag())
	if err != nil {
		n.record(obligation, OutcomeFailed)
		if errors.Is(err, repository.ErrTicketNotFound) {
			return OutcomeFailed, errorutil.NewNotFound("ticket", map[string]any{"ticket_number": ticket.TicketNumber})
		}
		return OutcomeFailed, errorutil.NewStoreError(err)
	}
	if !claimed {
		logger.Debug("notification already sent")
		n.record(obligation, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	if err := n.transport.Send(ctx, recipient, RenderObligation(obligation.Kind, ticket)); err != nil {
		logger.Error("notification send failed", zap.String("recipient_id", recipient), zap.Error(err))
		n.record(obligation, OutcomeFailed)
		return OutcomeFailed, errorutil.NewTransportError(err)
	}
	logger.Info("notification sent", zap.String("recipient_id", recipient))
	n.record(obligation, OutcomeSent)
	return OutcomeSent, nil
}

// DispatchAll dispatches every obligation, logging failures. It returns the
// first store failure so callers on a retrying path can redeliver.
func (n *NotificationService) DispatchAll(ctx context.Context, obligations []workflow.Obligation, ticket *domain.Ticket) error {
	var storeErr error
	for _, ob := range obligations {
		if _, err := n.Dispatch(ctx, ob, ticket); err != nil {
			n.logger.Warn("dispatch failed",
				zap.String("ticket_number", ticket.TicketNumber),
				zap.String("obligation", string(ob.Kind)),
				zap.Error(err))
			if storeErr == nil && errors.Is(err, errorutil.ErrStore) {
				storeErr = err
			}
		}
	}
	return storeErr
}

// Reply sends a direct answer that is not tracked by a notified flag.
func (n *NotificationService) Reply(ctx context.Context, recipientID, text string) error {
	if recipientID == "" || text == "" {
		return nil
	}
	if err := n.transport.Send(ctx, recipientID, text); err != nil {
		n.logger.Error("reply send failed", zap.String("recipient_id", recipientID), zap.Error(err))
		return errorutil.NewTransportError(err)
	}
	return nil
}

// RegisterHandlers subscribes to bus events. Each event re-derives the
// obligations of the referenced ticket from its current state.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, n.handleTicketEvent)
	}
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug("ticket event received",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_number", event.TicketNumber))

	ticket, err := n.tickets.GetByNumber(ctx, event.TicketNumber)
	if errors.Is(err, repository.ErrTicketNotFound) {
		n.logger.Warn("event for unknown ticket", zap.String("ticket_number", event.TicketNumber))
		return nil
	}
	if err != nil {
		return err
	}
	return n.DispatchAll(ctx, workflow.Derive(ticket), ticket)
}

func (n *NotificationService) recipient(kind workflow.ObligationKind, ticket *domain.Ticket) string {
	role := kind.Recipient()
	if role == domain.RoleRequester {
		return ticket.RequesterID
	}
	return n.bindings.RecipientFor(role)
}

func (n *NotificationService) record(obligation workflow.Obligation, outcome Outcome) {
	n.metrics.RecordDispatch(string(obligation.Kind), string(outcome))
}
