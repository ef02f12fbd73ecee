// Package dispatcher drives the enrichment queue on a fixed timer. One
// dispatcher goroutine claims and works one task per cycle, so the "single
// re-fetch in flight" invariant is structural rather than a flag.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/appcontext"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrDispatcherAlreadyRunning is returned when trying to start an already running dispatcher
	ErrDispatcherAlreadyRunning = errors.New("dispatcher already running")
)

const (
	// DefaultPollInterval is the default interval between dispatch cycles
	DefaultPollInterval = 60 * time.Second
)

// Fetcher is the external fetch-and-extract collaborator (browser
// automation). It re-visits a profile and returns the full observation.
type Fetcher interface {
	FetchProfile(ctx context.Context, publicID string) (*models.ProfileObservation, error)
}

// Queue is the enrichment surface the dispatcher consumes.
type Queue interface {
	ClaimNext(ctx context.Context) (*models.EnrichmentTask, error)
	Complete(ctx context.Context, publicID string, success bool, taskErr string) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Syncer routes a fetched observation back through the bulk sync path.
type Syncer interface {
	SyncBatch(ctx context.Context, items []models.ProfileObservation) (*models.SyncResult, error)
}

// Config holds configuration for the dispatcher
type Config struct {
	// PollInterval is how often to check the queue for eligible tasks
	PollInterval time.Duration

	// ReclaimStaleAfter re-queues tasks stuck in processing longer than
	// this. Zero disables reclaim, matching the observed upstream
	// behavior where a crashed fetch stranded its task.
	ReclaimStaleAfter time.Duration
}

// Dispatcher polls the enrichment queue and hands claimed tasks to the
// external fetcher.
type Dispatcher struct {
	queue   Queue
	fetcher Fetcher
	syncer  Syncer
	config  Config
	logger  ectologger.Logger

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	queue Queue,
	fetcher Fetcher,
	syncer Syncer,
	config Config,
	logger ectologger.Logger,
) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	return &Dispatcher{
		queue:    queue,
		fetcher:  fetcher,
		syncer:   syncer,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the dispatcher
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrDispatcherAlreadyRunning
	}
	d.running = true
	// Fresh channels each launch, so a dispatcher can be restarted after a
	// completed Stop
	d.stopCh = make(chan struct{})
	d.stoppedC = make(chan struct{})
	d.mu.Unlock()

	d.logger.WithContext(ctx).Infof("Starting dispatcher: poll_interval=%s reclaim_stale_after=%s",
		d.config.PollInterval, d.config.ReclaimStaleAfter)

	go d.pollLoop(ctx, d.stopCh, d.stoppedC)

	return nil
}

// Stop stops the dispatcher gracefully
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, stoppedC := d.stopCh, d.stoppedC
	d.mu.Unlock()

	d.logger.WithContext(ctx).Info("Stopping dispatcher...")

	close(stopCh)

	select {
	case <-stoppedC:
		d.logger.WithContext(ctx).Info("Dispatcher stopped gracefully")
	case <-ctx.Done():
		d.logger.WithContext(ctx).Warn("Dispatcher shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the dispatcher is running
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Dispatcher) pollLoop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	d.runCycle(ctx)

	for {
		select {
		case <-stopCh:
			d.logger.WithContext(ctx).Debug("Dispatcher poll loop stopping")
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// runCycle claims and works at most one task. Poll-interval pacing doubles
// as natural backoff for retried tasks.
func (d *Dispatcher) runCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Dispatcher.runCycle")
	defer span.End()

	ctx = appcontext.SetSource(ctx, "dispatcher")

	if d.config.ReclaimStaleAfter > 0 {
		if _, err := d.queue.ReclaimStale(ctx, d.config.ReclaimStaleAfter); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warn("Failed to reclaim stale tasks")
		}
	}

	task, err := d.queue.ClaimNext(ctx)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to claim enrichment task")
		return
	}
	if task == nil {
		d.logger.WithContext(ctx).Debug("No eligible enrichment tasks")
		return
	}

	d.workTask(ctx, task)
}

func (d *Dispatcher) workTask(ctx context.Context, task *models.EnrichmentTask) {
	ctx, span := tracing.StartSpan(ctx, "Dispatcher.workTask")
	defer span.End()

	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"public_id": task.PublicID,
		"attempts":  task.Attempts,
	})
	log.Info("Dispatching enrichment fetch")

	start := time.Now()
	obs, err := d.fetcher.FetchProfile(ctx, task.PublicID)
	metrics.EnrichmentFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithError(err).Warn("Enrichment fetch failed")
		d.complete(ctx, task.PublicID, false, err.Error())
		return
	}

	// the re-fetched record flows through the same sync path as any other
	// observation
	obs.PublicID = task.PublicID
	obs.Partial = false

	result, err := d.syncer.SyncBatch(ctx, []models.ProfileObservation{*obs})
	if err != nil {
		log.WithError(err).Warn("Failed to sync fetched profile")
		d.complete(ctx, task.PublicID, false, err.Error())
		return
	}
	if result.Saved == 0 {
		reason := "fetched profile failed to merge"
		if len(result.Failed) > 0 {
			reason = result.Failed[0].Error
		}
		log.WithFields(map[string]any{"reason": reason}).Warn("Fetched profile rejected by sync")
		d.complete(ctx, task.PublicID, false, reason)
		return
	}

	d.complete(ctx, task.PublicID, true, "")
	log.Info("Enrichment fetch completed")
}

func (d *Dispatcher) complete(ctx context.Context, publicID string, success bool, taskErr string) {
	if err := d.queue.Complete(ctx, publicID, success, taskErr); err != nil {
		d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to record task outcome")
	}
}
