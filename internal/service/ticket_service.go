package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/procurement-service/internal/chat"
	"github.com/spec-kit/procurement-service/internal/command"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/events"
	"github.com/spec-kit/procurement-service/internal/repository"
	"github.com/spec-kit/procurement-service/internal/workflow"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// TicketService coordinates the chat-driven approval workflow.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	parser     *command.Parser
	notifier   *NotificationService
	dispatcher events.Dispatcher
	bindings   domain.RoleBindings
	logger     *zap.Logger
	now        func() time.Time
	attempts   int

	randMu sync.Mutex
	rand   *rand.Rand
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Parser      *command.Parser
	Notifier    *NotificationService
	Dispatcher  events.Dispatcher
	Bindings    domain.RoleBindings
	Logger      *zap.Logger
	Now         func() time.Time
	// TicketNumberAttempts bounds regeneration after a ticket number collision.
	TicketNumberAttempts int
	RandSeed             int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TicketNumberAttempts <= 0 {
		deps.TicketNumberAttempts = 3
	}
	seed := deps.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		parser:     deps.Parser,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		bindings:   deps.Bindings,
		logger:     deps.Logger,
		now:        deps.Now,
		attempts:   deps.TicketNumberAttempts,
		rand:       rand.New(rand.NewSource(seed)),
	}
}

// HandleMessage is the chat inbound handler. It never lets a panic escape so
// one bad message cannot stop the transport loop.
func (s *TicketService) HandleMessage(ctx context.Context, msg chat.InboundMessage) (err error) {
	logger := s.logger.With(zap.String("sender_id", msg.SenderID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", zap.Any("panic", r))
			_ = s.notifier.Reply(ctx, msg.SenderID, Apology)
			err = fmt.Errorf("panic handling message: %v", r)
		}
	}()

	reply := s.process(ctx, msg.SenderID, msg.Text)
	return s.notifier.Reply(ctx, msg.SenderID, reply)
}

func (s *TicketService) process(ctx context.Context, senderID, text string) string {
	role := s.bindings.RoleOf(senderID)
	intent, err := s.parser.Parse(senderID, text)
	if err != nil {
		return s.renderError(senderID, err)
	}

	switch intent.Kind {
	case command.IntentHelp:
		return HelpText(role)
	case command.IntentCancel:
		return CancelAck
	case command.IntentBeginSubmission:
		return FormTemplate()
	case command.IntentUnrecognized:
		return UnrecognizedHint
	case command.IntentSubmitForm:
		ticket, err := s.Submit(ctx, senderID, *intent.Form)
		if err != nil {
			return s.renderError(senderID, err)
		}
		return SubmittedAck(ticket)
	case command.IntentCheckStatus:
		ticket, err := s.GetTicket(ctx, intent.TicketNumber)
		if err != nil {
			return s.renderError(senderID, err)
		}
		return StatusView(ticket)
	}

	if intent.AwaitingReason {
		if err := s.checkRejectable(ctx, intent.TicketNumber); err != nil {
			s.parser.Conversations().Discard(senderID)
			return s.renderError(senderID, err)
		}
		return ReasonPrompt(intent.TicketNumber)
	}

	ticket, err := s.Apply(ctx, senderID, role, intent)
	if err != nil {
		return s.renderError(senderID, err)
	}
	return DecisionAck(ticket)
}

// Submit stores a new ticket and notifies the department head. A ticket
// number collision regenerates the number a bounded number of times.
func (s *TicketService) Submit(ctx context.Context, requesterID string, form command.SubmissionForm) (*domain.Ticket, error) {
	for attempt := 0; attempt < s.attempts; attempt++ {
		ticket, obligations := workflow.NewTicket(s.newTicketNumber(), requesterID, form, s.now().UTC())
		err := s.tickets.Create(ctx, ticket)
		if errors.Is(err, repository.ErrDuplicateTicketNumber) {
			s.logger.Warn("ticket number collision", zap.String("ticket_number", ticket.TicketNumber))
			continue
		}
		if err != nil {
			return nil, errorutil.NewStoreError(err)
		}

		s.recordTransition(ctx, requesterID, domain.RoleRequester, nil, ticket, "")
		_ = s.notifier.DispatchAll(ctx, obligations, ticket)
		s.publishEvent(ctx, nil, ticket, requesterID, domain.RoleRequester)
		return ticket, nil
	}
	return nil, errorutil.NewConflict("could not allocate a ticket number", nil)
}

// Apply runs an approver intent against the stored ticket. The write is
// conditional on the status the transition was computed from.
func (s *TicketService) Apply(ctx context.Context, actorID string, role domain.Role, intent command.Intent) (*domain.Ticket, error) {
	current, err := s.GetTicket(ctx, intent.TicketNumber)
	if err != nil {
		return nil, err
	}
	next, obligations, err := workflow.Transition(current, intent, role)
	if err != nil {
		return nil, err
	}
	if !workflow.Changed(current, next) {
		return next, nil
	}

	stored, err := s.tickets.Update(ctx, current.TicketNumber, updateFor(current, next))
	switch {
	case errors.Is(err, repository.ErrStaleTicket):
		latest, getErr := s.GetTicket(ctx, current.TicketNumber)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errorutil.NewInvalidTransition(latest.TicketNumber, string(latest.PrimaryStatus))
	case errors.Is(err, repository.ErrTicketNotFound):
		return nil, notFound(intent.TicketNumber)
	case err != nil:
		return nil, errorutil.NewStoreError(err)
	}

	reason := next.DeptReason
	if role == domain.RoleTreasury {
		reason = next.TreasuryReason
	}
	from := current.PrimaryStatus
	s.recordTransition(ctx, actorID, role, &from, stored, reason)
	_ = s.notifier.DispatchAll(ctx, obligations, stored)
	s.publishEvent(ctx, &from, stored, actorID, role)
	return stored, nil
}

// GetTicket looks up a ticket by number.
func (s *TicketService) GetTicket(ctx context.Context, number string) (*domain.Ticket, error) {
	number = strings.TrimSpace(number)
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, notFound(number)
	}
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets for the operator API.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return tickets, nil
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, number string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, number); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, number)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return entries, nil
}

func (s *TicketService) checkRejectable(ctx context.Context, number string) error {
	ticket, err := s.GetTicket(ctx, number)
	if err != nil {
		return err
	}
	if ticket.PrimaryStatus != domain.StatusAwaitingDeptApproval {
		return errorutil.NewInvalidTransition(ticket.TicketNumber, string(ticket.PrimaryStatus))
	}
	return nil
}

func (s *TicketService) renderError(senderID string, err error) string {
	de := errorutil.ToDomainError(err)
	switch de.Code {
	case errorutil.CodeStore, errorutil.CodeTransport, errorutil.CodeInternal, errorutil.CodeConflict:
		s.logger.Error("message abandoned", zap.String("sender_id", senderID), zap.Error(err))
	default:
		s.logger.Info("message refused", zap.String("sender_id", senderID), zap.String("code", de.Code))
	}
	return RenderError(err)
}

func (s *TicketService) newTicketNumber() string {
	s.randMu.Lock()
	suffix := s.rand.Intn(1000)
	s.randMu.Unlock()
	return fmt.Sprintf("%d%d", s.now().UnixMilli()%10000, suffix)
}

func (s *TicketService) publishEvent(ctx context.Context, from *domain.PrimaryStatus, ticket *domain.Ticket, actorID string, role domain.Role) {
	if s.dispatcher == nil {
		return
	}
	payload := events.TransitionPayload{
		ToStatus:         ticket.PrimaryStatus,
		TreasuryProgress: ticket.TreasuryProgress,
	}
	if from != nil {
		payload.FromStatus = *from
	}
	switch ticket.PrimaryStatus {
	case domain.StatusRejectedByDept:
		payload.Reason = ticket.DeptReason
	case domain.StatusAwaitingTreasuryProcessing, domain.StatusCompleted:
		payload.Reason = ticket.TreasuryReason
	}
	event := events.Event{
		ID:           uuid.NewString(),
		Type:         events.EventTypeFor(from, ticket.PrimaryStatus),
		TicketNumber: ticket.TicketNumber,
		ActorID:      actorID,
		ActorRole:    role,
		Timestamp:    s.now().UTC(),
		Payload:      payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("ticket_number", ticket.TicketNumber),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *TicketService) recordTransition(ctx context.Context, actorID string, role domain.Role, from *domain.PrimaryStatus, ticket *domain.Ticket, reason string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketNumber:     ticket.TicketNumber,
		ActorID:          actorID,
		ActorRole:        role,
		FromStatus:       from,
		ToStatus:         ticket.PrimaryStatus,
		TreasuryProgress: ticket.TreasuryProgress,
		Reason:           reason,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record history failed", zap.String("ticket_number", ticket.TicketNumber), zap.Error(err))
	}
}

func updateFor(current, next *domain.Ticket) repository.TicketUpdate {
	expected := current.PrimaryStatus
	update := repository.TicketUpdate{ExpectedStatus: &expected}
	if next.PrimaryStatus != current.PrimaryStatus {
		status := next.PrimaryStatus
		update.PrimaryStatus = &status
	}
	if next.TreasuryProgress != nil {
		progress := *next.TreasuryProgress
		update.TreasuryProgress = &progress
	}
	if next.DeptReason != current.DeptReason {
		reason := next.DeptReason
		update.DeptReason = &reason
	}
	if next.TreasuryReason != current.TreasuryReason {
		reason := next.TreasuryReason
		update.TreasuryReason = &reason
	}
	return update
}

func notFound(number string) error {
	return errorutil.NewNotFound("ticket", map[string]any{"ticket_number": number})
}
