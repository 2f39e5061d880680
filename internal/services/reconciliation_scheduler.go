package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chamapay/backend/internal/config"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/rs/zerolog"
)

// Verifier queries the provider for the state of a payment prompt.
type Verifier interface {
	Verify(ctx context.Context, correlationID string) (gateway.VerifyResult, error)
}

// PendingTransaction is the slice of a pending row recovery needs: the
// polling deadline always counts from CreatedAt.
type PendingTransaction struct {
	ID        int64
	CreatedAt time.Time
}

// PendingLister feeds start-up recovery.
type PendingLister interface {
	PendingTransactions(ctx context.Context, since time.Time) ([]PendingTransaction, error)
}

// ReconciliationScheduler polls the gateway for pending transactions until
// they settle or their deadline passes. Work is driven from a JobQueue so a
// restart does not lose in-flight transactions.
type ReconciliationScheduler struct {
	queue    JobQueue
	store    TransactionReader
	verifier Verifier
	settler  Settler
	cfg      *config.ReconcileConfig
	log      zerolog.Logger
	now      func() time.Time
	slots    chan struct{}
}

func NewReconciliationScheduler(queue JobQueue, store TransactionReader, verifier Verifier, settler Settler,
	cfg *config.ReconcileConfig, log zerolog.Logger) *ReconciliationScheduler {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &ReconciliationScheduler{
		queue:    queue,
		store:    store,
		verifier: verifier,
		settler:  settler,
		cfg:      cfg,
		log:      log.With().Str("component", "reconciler").Logger(),
		now:      time.Now,
		slots:    make(chan struct{}, workers),
	}
}

// Schedule queues the first status check for a transaction that the gateway
// has just accepted.
func (s *ReconciliationScheduler) Schedule(ctx context.Context, transactionID int64) error {
	now := s.now()
	return s.queue.Push(ctx, ReconcileJob{
		TransactionID: transactionID,
		NextAttemptAt: now.Add(s.cfg.InitialDelay),
		Deadline:      now.Add(s.cfg.MaxWait),
	})
}

// Run processes due jobs every PollTick until ctx is cancelled.
func (s *ReconciliationScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollTick)
	defer ticker.Stop()

	s.log.Info().
		Dur("initial_delay", s.cfg.InitialDelay).
		Dur("retry_interval", s.cfg.RetryInterval).
		Dur("max_wait", s.cfg.MaxWait).
		Msg("reconciliation scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciliation scheduler stopped")
			return
		case <-ticker.C:
			s.ProcessDue(ctx)
		}
	}
}

// ProcessDue claims every due job and processes them on the worker pool.
// It returns the number of jobs this caller claimed.
func (s *ReconciliationScheduler) ProcessDue(ctx context.Context) int {
	ids, err := s.queue.Due(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read due reconciliation jobs")
		return 0
	}

	var wg sync.WaitGroup
	claimed := 0
	for _, id := range ids {
		job, ok, err := s.queue.Claim(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Int64("transaction_id", id).Msg("failed to claim reconciliation job")
			continue
		}
		if !ok {
			continue
		}
		claimed++

		s.slots <- struct{}{}
		wg.Add(1)
		go func(job ReconcileJob) {
			defer wg.Done()
			defer func() { <-s.slots }()
			s.process(ctx, job)
		}(*job)
	}
	wg.Wait()
	return claimed
}

func (s *ReconciliationScheduler) process(ctx context.Context, job ReconcileJob) {
	log := s.log.With().Int64("transaction_id", job.TransactionID).Int("attempt", job.Attempts+1).Logger()

	t, err := s.store.GetTransaction(ctx, job.TransactionID)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Msg("dropping job for unknown transaction")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load transaction")
		s.reschedule(ctx, job)
		return
	}
	if !t.IsPending() || t.CorrelationID == nil {
		return
	}

	if !job.Deadline.IsZero() && s.now().After(job.Deadline) {
		log.Warn().
			Str("correlation_id", *t.CorrelationID).
			Msg("reconciliation deadline passed, leaving transaction pending")
		return
	}

	result, err := s.verifier.Verify(ctx, *t.CorrelationID)
	if err != nil {
		log.Warn().Err(err).Msg("verify failed, will retry")
		s.reschedule(ctx, job)
		return
	}

	if s.apply(ctx, t, result) {
		s.reschedule(ctx, job)
	}
}

// apply acts on a verify outcome and reports whether polling should continue.
func (s *ReconciliationScheduler) apply(ctx context.Context, t *models.Transaction, result gateway.VerifyResult) bool {
	log := s.log.With().Int64("transaction_id", t.ID).Logger()

	switch result.Outcome {
	case gateway.OutcomeSucceeded:
		settled, err := s.settler.Settle(ctx, t.ID, result.ReceiptRef)
		if err != nil {
			log.Error().Err(err).Msg("settlement failed")
			return true
		}
		log.Info().Bool("won", settled).Str("receipt", result.ReceiptRef).Msg("poller observed success")
	case gateway.OutcomeFailed:
		if _, err := s.settler.Fail(ctx, t.ID, result.Reason); err != nil {
			log.Error().Err(err).Msg("failed to mark transaction failed")
			return true
		}
	default:
		return true
	}
	return false
}

func (s *ReconciliationScheduler) reschedule(ctx context.Context, job ReconcileJob) {
	job.Attempts++
	job.NextAttemptAt = s.now().Add(s.cfg.RetryInterval)
	if err := s.queue.Push(ctx, job); err != nil {
		s.log.Error().Err(err).Int64("transaction_id", job.TransactionID).Msg("failed to reschedule reconciliation job")
	}
}

// Recover re-queues pending transactions still inside the polling window.
func (s *ReconciliationScheduler) Recover(ctx context.Context, lister PendingLister) (int, error) {
	now := s.now()
	pending, err := lister.PendingTransactions(ctx, now.Add(-s.cfg.MaxWait))
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}

	recovered := 0
	for _, p := range pending {
		queued, err := s.queue.Contains(ctx, p.ID)
		if err != nil {
			return recovered, err
		}
		if queued {
			continue
		}
		// restarts must not extend the polling budget
		if err := s.queue.Push(ctx, ReconcileJob{
			TransactionID: p.ID,
			NextAttemptAt: now,
			Deadline:      p.CreatedAt.Add(s.cfg.MaxWait),
		}); err != nil {
			return recovered, err
		}
		recovered++
	}

	s.log.Info().Int("recovered", recovered).Int("pending", len(pending)).Msg("reconciliation queue recovered")
	return recovered, nil
}

// VerifyForUser is VerifyNow limited to the member's own transactions. The
// owner is checked before the gateway is asked anything.
func (s *ReconciliationScheduler) VerifyForUser(ctx context.Context, userID int64, correlationID string) (*models.Transaction, error) {
	t, err := s.store.GetTransactionByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("transaction with correlation %q: %w", correlationID, ErrNotFound)
	}
	return s.VerifyNow(ctx, correlationID)
}

// VerifyNow reconciles a transaction on demand through the same settlement
// path the poller uses, and returns its current state.
func (s *ReconciliationScheduler) VerifyNow(ctx context.Context, correlationID string) (*models.Transaction, error) {
	t, err := s.store.GetTransactionByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if !t.IsPending() {
		return t, nil
	}

	result, err := s.verifier.Verify(ctx, correlationID)
	if err != nil {
		s.log.Warn().Err(err).Str("correlation_id", correlationID).Msg("on-demand verify failed")
		return t, nil
	}

	if !s.apply(ctx, t, result) {
		if err := s.queue.Remove(ctx, t.ID); err != nil {
			s.log.Warn().Err(err).Int64("transaction_id", t.ID).Msg("failed to drop settled job")
		}
	}
	return s.store.GetTransaction(ctx, t.ID)
}
