package rating

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/pkg/worker"
	"github.com/jrkphani/heybo-engine/recovery"
)

// Submitter delivers a rating to the remote endpoint. Implementations
// may fail; the service owns retry policy.
type Submitter interface {
	Submit(ctx context.Context, r Rating) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, r Rating) error

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, r Rating) error {
	return f(ctx, r)
}

// Service accepts ratings, logs them locally, and dispatches remote
// delivery through a bounded worker pool with a durable retry queue.
type Service struct {
	mu        sync.Mutex
	store     *Store
	submitter Submitter
	pool      *worker.Pool[Rating]
	recovery  *recovery.Manager
	metrics   *metric.Metrics
	logger    *slog.Logger
	sched     clock.Scheduler
}

// NewService builds a rating service; call Start before submitting.
// rec and metrics may be nil.
func NewService(
	store *Store,
	submitter Submitter,
	rec *recovery.Manager,
	metrics *metric.Metrics,
	logger *slog.Logger,
	sched clock.Scheduler,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sched == nil {
		sched = clock.NewSystem()
	}
	s := &Service{
		store:     store,
		submitter: submitter,
		recovery:  rec,
		metrics:   metrics,
		logger:    logger,
		sched:     sched,
	}
	s.pool = worker.NewPool(2, 50, s.deliver)
	return s
}

// Start launches the delivery workers.
func (s *Service) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Stop drains the delivery workers.
func (s *Service) Stop(timeout time.Duration) error {
	return s.pool.Stop(timeout)
}

// Submit validates and records r, clears its order from the unrated
// set, and hands delivery to the pool. The rating is durably logged
// before any network is attempted; a full pool queue sends it straight
// to the retry queue instead of dropping it.
func (s *Service) Submit(ctx context.Context, r Rating) (Rating, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.sched.Now()
	}
	if err := r.Validate(); err != nil {
		return Rating{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Append(ctx, r); err != nil {
		return Rating{}, errors.WrapAs(errors.CategorySession, err, "rating", "Submit", "append local log")
	}
	if err := s.store.ClearUnrated(ctx, r.OrderID); err != nil {
		s.logger.Warn("failed to clear unrated order", "orderId", r.OrderID, "error", err)
	}

	if err := s.pool.Submit(r); err != nil {
		if qErr := s.store.Enqueue(ctx, QueueEntry{Rating: r}); qErr != nil {
			s.logger.Error("rating delivery queue unavailable", "ratingId", r.ID, "error", qErr)
		}
		s.metrics.IncRatingSubmitted("queued")
	}
	return r, nil
}

// deliver is the pool processor: one remote submission attempt, with
// failures parked in the durable retry queue.
func (s *Service) deliver(ctx context.Context, r Rating) error {
	err := s.submitter.Submit(ctx, r)
	if err == nil {
		s.metrics.IncRatingSubmitted("ok")
		return nil
	}

	s.metrics.IncRatingSubmitted("failed")
	s.reportFailure(r, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if qErr := s.store.Enqueue(ctx, QueueEntry{Rating: r, RetryCount: 1}); qErr != nil {
		s.logger.Error("failed to park rating for retry", "ratingId", r.ID, "error", qErr)
	}
	return err
}

// Flush replays the retry queue synchronously. Entries that fail again
// stay queued with their retry count bumped; entries out of budget are
// dropped from the queue but remain in the local log.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.store.Queue(ctx)
	if err != nil {
		return errors.WrapAs(errors.CategorySession, err, "rating", "Flush", "read retry queue")
	}
	if len(queue) == 0 {
		return nil
	}

	budget := errors.CategoryAPI.DefaultMaxRetries()
	var remaining []QueueEntry
	for _, entry := range queue {
		if err := s.submitter.Submit(ctx, entry.Rating); err == nil {
			s.metrics.IncRatingSubmitted("ok")
			continue
		} else if entry.RetryCount+1 >= budget {
			s.metrics.IncRatingSubmitted("abandoned")
			s.logger.Warn("rating delivery abandoned after retry budget",
				"ratingId", entry.Rating.ID, "retries", entry.RetryCount+1)
			continue
		} else {
			s.metrics.IncRatingSubmitted("failed")
			entry.RetryCount++
			remaining = append(remaining, entry)
		}
	}

	return s.store.ReplaceQueue(ctx, remaining)
}

// RecordOrder marks orderID as awaiting a rating.
func (s *Service) RecordOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.MarkUnrated(ctx, orderID)
}

// HasPending reports whether any prior order still awaits a rating.
func (s *Service) HasPending(ctx context.Context) bool {
	orders, err := s.store.Unrated(ctx)
	if err != nil {
		return false
	}
	return len(orders) > 0
}

func (s *Service) reportFailure(r Rating, err error) {
	if s.recovery == nil {
		return
	}
	s.recovery.CreateError(
		errors.CategoryAPI,
		"RATING_SUBMIT_FAILED",
		err.Error(),
		"We couldn't send your rating; we'll retry shortly",
		errors.SeverityLow,
		map[string]any{"ratingId": r.ID, "orderId": r.OrderID},
	)
}
