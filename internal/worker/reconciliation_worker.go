package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/observability"
	"github.com/spec-kit/procurement-service/internal/repository"
	"github.com/spec-kit/procurement-service/internal/workflow"
)

// Dispatcher delivers the obligations owed for a ticket.
type Dispatcher interface {
	DispatchAll(ctx context.Context, obligations []workflow.Obligation, ticket *domain.Ticket) error
}

// ReconcileResult summarizes one scan.
type ReconcileResult struct {
	StartedAt time.Time `json:"started_at"`
	Since     time.Time `json:"since"`
	Scanned   int       `json:"scanned"`
	Failed    int       `json:"failed"`
}

// Reconciler re-derives notification obligations for tickets changed since
// the previous scan, so edits made outside the chat flow still notify.
type Reconciler struct {
	tickets    repository.TicketRepository
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	overlap    time.Duration

	mu       sync.Mutex
	lastScan time.Time
	cron     *cron.Cron
}

// NewReconciler builds a reconciler whose first scan covers every ticket.
func NewReconciler(tickets repository.TicketRepository, dispatcher Dispatcher, logger *zap.Logger, metrics *observability.Metrics, now func() time.Time) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        now,
	}
}

// Reconcile scans tickets updated after lastScan and dispatches the
// obligations implied by their current state. It returns the next scan mark:
// the scan start minus the configured overlap, moved back to just before the
// oldest ticket whose dispatch failed. If listing fails it returns lastScan so
// the window is retried.
func (r *Reconciler) Reconcile(ctx context.Context, lastScan time.Time) (time.Time, ReconcileResult, error) {
	startedAt := r.now().UTC()
	result := ReconcileResult{StartedAt: startedAt, Since: lastScan}

	filter := repository.TicketFilter{}
	if !lastScan.IsZero() {
		since := lastScan
		filter.UpdatedAfter = &since
	}
	tickets, err := r.tickets.List(ctx, filter)
	if err != nil {
		r.logger.Error("reconcile: list tickets failed", zap.Error(err))
		r.metrics.RecordReconcile("list_failed", startedAt)
		return lastScan, result, fmt.Errorf("reconcile: list tickets: %w", err)
	}

	next := startedAt.Add(-r.overlap)
	for i := range tickets {
		ticket := &tickets[i]
		result.Scanned++
		if err := r.dispatcher.DispatchAll(ctx, workflow.Derive(ticket), ticket); err != nil {
			result.Failed++
			r.logger.Warn("reconcile: ticket failed, retrying next pass",
				zap.String("ticket_number", ticket.TicketNumber),
				zap.Error(err))
			// keep the failed ticket inside the next window
			if retry := ticket.LastUpdated.Add(-time.Microsecond); retry.Before(next) {
				next = retry
			}
		}
	}

	r.metrics.RecordReconcile("ok", startedAt)
	r.logger.Info("reconcile pass finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("failed", result.Failed),
		zap.Time("since", lastScan))
	return next, result, nil
}

// WithOverlap makes every scan window reach back d before the previous scan
// started, so writes stamped just before a scan but committed after it are
// still seen. Rescanned tickets come back Skipped.
func (r *Reconciler) WithOverlap(d time.Duration) *Reconciler {
	if d > 0 {
		r.overlap = d
	}
	return r
}

// RunOnce reconciles from the stored scan mark and advances it.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, result, err := r.Reconcile(ctx, r.lastScan)
	r.lastScan = next
	return result, err
}

// LastScan returns the current scan mark.
func (r *Reconciler) LastScan() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastScan
}

// Start schedules RunOnce on the cron schedule. Overlapping runs are skipped.
func (r *Reconciler) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("scheduled reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile: invalid schedule %q: %w", schedule, err)
	}
	r.cron = c
	c.Start()
	r.logger.Info("reconciliation poller started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule. An in-flight scan finishes on its own.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	r.cron.Stop()
	r.logger.Info("reconciliation poller stopped")
}
