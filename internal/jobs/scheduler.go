// Package jobs runs the periodic background work: carrier tracking sync and
// payment reconciliation.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/kumamontessori/kuma/internal/logging"
)

type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler wraps cron with a per-run timeout, logging and run counters.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	runs    *prometheus.CounterVec
	timeout time.Duration
	mu      sync.Mutex
	started bool
}

const defaultJobTimeout = 2 * time.Minute

// NewScheduler accepts five or six field specs and descriptors such as
// "@every 30m". runs may be nil.
func NewScheduler(logger *slog.Logger, runs *prometheus.CounterVec) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.With("component", "scheduler"),
		runs:    runs,
		timeout: defaultJobTimeout,
	}
}

func (s *Scheduler) Register(spec string, runnable Runnable) (cron.EntryID, error) {
	if runnable == nil {
		return 0, fmt.Errorf("scheduler: runnable is required")
	}
	if spec == "" {
		return 0, fmt.Errorf("scheduler: spec is required for %s", runnable.Name())
	}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(context.Background(), runnable) })
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid spec %q for %s: %w", spec, runnable.Name(), err)
	}
	s.logger.Info("job registered", "job", runnable.Name(), "spec", spec)
	return entryID, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return context.Background()
	}
	s.started = false
	return s.cron.Stop()
}

func (s *Scheduler) run(parent context.Context, runnable Runnable) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	hub := sentry.CurrentHub().Clone()
	ctx = sentry.SetHubOnContext(ctx, hub)
	span := sentry.StartSpan(ctx, "job."+runnable.Name(),
		sentry.WithOpName("job"),
		sentry.WithTransactionName(runnable.Name()),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.logger.With("job", runnable.Name())
	ctx = logging.WithLogger(ctx, logger)

	start := time.Now()
	err := runnable.Run(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.Status = sentry.SpanStatusInternalError
		hub.CaptureException(err)
		logger.Error("job failed", "error", err, "elapsed", elapsed)
	} else {
		logger.Debug("job completed", "elapsed", elapsed)
	}
	if s.runs != nil {
		s.runs.WithLabelValues(runnable.Name(), outcome).Inc()
	}
}
