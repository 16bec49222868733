package baidu

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
)

// Place search defaults.
const (
	DefaultScope    = 2
	DefaultPageSize = 10
	MaxPageSize     = 20 // the provider never returns more per page
)

// PlaceQuery describes a place search.
type PlaceQuery struct {
	Query  string
	Filter RegionFilter
	Tag    string

	Scope     int // 1 basic fields, 2 detailed; 0 means DefaultScope
	PageSize  int // 0 means DefaultPageSize; at most MaxPageSize
	StartPage int

	// Recursive fetches every remaining page after the first, but only
	// when StartPage is 0.
	Recursive bool
}

func (q PlaceQuery) withDefaults() PlaceQuery {
	if q.Scope == 0 {
		q.Scope = DefaultScope
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

func (q PlaceQuery) validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query is required", ErrQuery)
	}
	if q.Scope != 1 && q.Scope != 2 {
		return fmt.Errorf("%w: scope must be 1 or 2", ErrQuery)
	}
	if q.PageSize < 0 || q.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size must be between 1 and %d", ErrQuery, MaxPageSize)
	}
	if q.StartPage < 0 {
		return fmt.Errorf("%w: start page must not be negative", ErrQuery)
	}
	return q.Filter.validate()
}

// pageState tracks one place search while it is being iterated.
type pageState struct {
	page      int
	total     int // known once the first page arrives
	pageCount int
}

// PlaceSearch returns a lazy sequence of places. Nothing is fetched until the
// sequence is ranged over, and every range starts again from q.StartPage.
// Pages are fetched one at a time in increasing order.
//
// A provider failure ends the sequence without an error. A transport failure
// on the first page is yielded once as an error. Follow-up pages are retried
// on timeouts per the client's RetryPolicy; exhaustion yields an error
// wrapping ErrRetriesExhausted.
func (c *Client) PlaceSearch(ctx context.Context, q PlaceQuery) iter.Seq2[domain.PlaceOfInterest, error] {
	return func(yield func(domain.PlaceOfInterest, error) bool) {
		q := q.withDefaults()
		if err := q.validate(); err != nil {
			yield(nil, err)
			return
		}

		state := pageState{page: q.StartPage}
		r, err := c.searchPage(ctx, q, state.page)
		if err != nil {
			yield(nil, err)
			return
		}
		if !r.status.OK() {
			c.logStatus("search", r.status)
			return
		}
		state.total = r.value.total
		state.pageCount = pageCount(state.total, q.PageSize)
		c.logger.Debug("place search first page",
			"query", q.Query,
			"filter", q.Filter.String(),
			"total", state.total,
			"page_count", state.pageCount,
		)
		if !yieldPlaces(r.value.places, yield) {
			return
		}

		if q.StartPage != 0 || !q.Recursive {
			return
		}
		for state.page = 1; state.page < state.pageCount; state.page++ {
			r, err := c.searchPageWithRetry(ctx, q, state.page)
			if err != nil {
				yield(nil, err)
				return
			}
			if !r.status.OK() {
				c.logStatus("search", r.status)
				return
			}
			if !yieldPlaces(r.value.places, yield) {
				return
			}
		}
	}
}

// CollectPlaces drains a place search into a slice, stopping at the first error.
func CollectPlaces(seq iter.Seq2[domain.PlaceOfInterest, error]) ([]domain.PlaceOfInterest, error) {
	var out []domain.PlaceOfInterest
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

func yieldPlaces(places []domain.PlaceOfInterest, yield func(domain.PlaceOfInterest, error) bool) bool {
	for _, p := range places {
		if !yield(p, nil) {
			return false
		}
	}
	return true
}

func (c *Client) searchPage(ctx context.Context, q PlaceQuery, pageNum int) (reply[searchPage], error) {
	body, err := c.get(ctx, "search", c.cfg.placeSearchURL(), c.searchParams(q, pageNum))
	if err != nil {
		c.countOutcome("search", "error")
		return reply[searchPage]{}, err
	}
	r, err := parseSearch(body)
	if err != nil {
		c.countOutcome("search", "error")
		return reply[searchPage]{}, err
	}
	if r.status.OK() {
		c.countOutcome("search", "success")
	} else {
		c.countOutcome("search", "empty")
	}
	return r, nil
}

// searchPageWithRetry fetches a follow-up page, retrying timeouts with
// exponential backoff up to RetryPolicy.MaxAttempts.
func (c *Client) searchPageWithRetry(ctx context.Context, q PlaceQuery, pageNum int) (reply[searchPage], error) {
	policy := c.cfg.Retry
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		r, err := c.searchPage(ctx, q, pageNum)
		if err == nil {
			return r, nil
		}
		if !retryable(err) {
			return reply[searchPage]{}, err
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}

		c.metrics.PageRetries.Inc()
		c.logger.Warn("place search page failed, retrying",
			"query", q.Query,
			"page", pageNum,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if err := sleepWithContext(ctx, c.clock, backoff); err != nil {
			return reply[searchPage]{}, err
		}
		backoff = nextBackoff(backoff, policy.MaxBackoff)
	}
	return reply[searchPage]{}, fmt.Errorf("%w: page %d after %d attempts: %w",
		ErrRetriesExhausted, pageNum, policy.MaxAttempts, lastErr)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
