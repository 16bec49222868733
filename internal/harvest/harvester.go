package harvest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/baidu"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

// PlaceSearcher runs a lazy place search.
type PlaceSearcher interface {
	PlaceSearch(ctx context.Context, q baidu.PlaceQuery) iter.Seq2[domain.PlaceOfInterest, error]
}

// BatchLoader writes multiple place records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.PlaceRecord) error
}

// Job is the set of searches one harvest run performs.
type Job struct {
	Queries  []string
	Filter   baidu.RegionFilter
	Tag      string
	PageSize int
}

// Summary reports the outcome of one harvest run.
type Summary struct {
	Places    int
	Duplicate int
	Failed    []string // queries that did not finish
}

const (
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 5 * time.Second
	maxPublishAttempts = 5
)

// Harvester walks every page of each query and publishes the places it finds.
type Harvester struct {
	searcher  PlaceSearcher
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	ready     atomic.Bool
	batchSize int
	job       Job
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithClock replaces the clock used for publish backoff and the run interval.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Harvester) { h.clock = clock }
}

// New creates a Harvester for job.
func New(s PlaceSearcher, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, job Job, opts ...Option) *Harvester {
	h := &Harvester{
		searcher:  s,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		batchSize: batchSize,
		job:       job,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CheckReadiness returns nil once a harvest run has completed at least one
// query, or an error describing why the service is not yet ready.
func (h *Harvester) CheckReadiness(_ context.Context) error {
	if !h.ready.Load() {
		return errors.New("harvester has not completed a query yet")
	}
	return nil
}

// Run harvests once, then again every interval until the context is
// cancelled. A zero interval returns after the first run.
func (h *Harvester) Run(ctx context.Context, interval time.Duration) error {
	h.logger.Info("harvester started",
		"queries", len(h.job.Queries),
		"filter", h.job.Filter.String(),
		"interval", interval,
	)

	if _, err := h.RunOnce(ctx); err != nil && ctx.Err() == nil {
		h.logger.Error("harvest run incomplete", "error", err)
	}
	if interval <= 0 {
		return nil
	}

	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("harvester stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if _, err := h.RunOnce(ctx); err != nil && ctx.Err() == nil {
				h.logger.Error("harvest run incomplete", "error", err)
			}
		}
	}
}

// RunOnce searches every query in the job and publishes the results.
// A failing query is recorded in the summary and the run moves on; the
// returned error joins every query failure.
func (h *Harvester) RunOnce(ctx context.Context) (Summary, error) {
	h.metrics.HarvestRunning.Set(1)
	defer h.metrics.HarvestRunning.Set(0)
	start := h.clock.Now()

	var (
		sum  Summary
		errs []error
	)
	seen := make(map[string]struct{})
	for _, query := range h.job.Queries {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		n, dup, err := h.harvestQuery(ctx, query, seen)
		sum.Places += n
		sum.Duplicate += dup
		if err != nil {
			sum.Failed = append(sum.Failed, query)
			errs = append(errs, fmt.Errorf("query %q: %w", query, err))
			h.logger.Warn("query harvest failed", "query", query, "published", n, "error", err)
			continue
		}
		h.ready.Store(true)
		h.logger.Info("query harvested", "query", query, "published", n, "duplicates", dup)
	}

	h.metrics.HarvestDuration.Observe(h.clock.Since(start).Seconds())
	h.logger.Info("harvest run finished",
		"places", sum.Places,
		"duplicates", sum.Duplicate,
		"failed", len(sum.Failed),
	)
	return sum, errors.Join(errs...)
}

// harvestQuery streams one query's places into batches and publishes them.
// Places already seen in this run, by uid, are skipped.
func (h *Harvester) harvestQuery(ctx context.Context, query string, seen map[string]struct{}) (published, duplicates int, err error) {
	q := baidu.PlaceQuery{
		Query:     query,
		Filter:    h.job.Filter,
		Tag:       h.job.Tag,
		PageSize:  h.job.PageSize,
		Recursive: true,
	}
	region := h.job.Filter.Region()

	batch := make([]domain.PlaceRecord, 0, h.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := h.publish(ctx, batch); err != nil {
			return err
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}

	for place, err := range h.searcher.PlaceSearch(ctx, q) {
		if err != nil {
			// Keep what was already found before reporting the failure.
			if ferr := flush(); ferr != nil {
				return published, duplicates, errors.Join(err, ferr)
			}
			return published, duplicates, err
		}
		if uid := place.UID(); uid != "" {
			if _, ok := seen[uid]; ok {
				duplicates++
				continue
			}
			seen[uid] = struct{}{}
		}
		batch = append(batch, domain.NewPlaceRecord(query, region, place))
		if len(batch) >= h.batchSize {
			if err := flush(); err != nil {
				return published, duplicates, err
			}
		}
	}
	return published, duplicates, flush()
}

// publish writes a batch, retrying with exponential backoff.
func (h *Harvester) publish(ctx context.Context, batch []domain.PlaceRecord) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if err = h.loader.LoadBatch(ctx, batch); err == nil {
			h.metrics.PlacesPublished.Add(float64(len(batch)))
			return nil
		}
		h.metrics.PublishErrors.Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Error("publish batch failed", "error", err, "batch_size", len(batch), "attempt", attempt)
		if attempt == maxPublishAttempts {
			break
		}
		if !sleepWithContext(ctx, h.clock, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %d places after %d attempts: %w", len(batch), maxPublishAttempts, err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
