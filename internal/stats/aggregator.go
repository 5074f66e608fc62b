package stats

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"memestats-backend/internal/balance"
	"memestats-backend/internal/cache"
	"memestats-backend/internal/holders"
	"memestats-backend/internal/observability"
	"memestats-backend/internal/priceindex"
	"memestats-backend/internal/retry"
	"memestats-backend/internal/solana"
)

// ErrAllSourcesUnavailable is returned when every source fetch failed and
// no previous snapshot exists to fall back on.
var ErrAllSourcesUnavailable = errors.New("all data sources unavailable")

// Snapshot is a TokenStats annotated with serving metadata.
type Snapshot struct {
	TokenStats
	Cached          bool     `json:"cached"`
	CacheAgeSeconds *int64   `json:"cacheAge,omitempty"`
	Stale           bool     `json:"stale,omitempty"`
	Degraded        []string `json:"degraded,omitempty"`
}

// Field names used in Snapshot.Degraded.
const (
	FieldPrice          = "price"
	FieldTotalSupply    = "totalSupply"
	FieldFounderBalance = "founderBalance"
	FieldBurnedBalance  = "burnedBalance"
	FieldHolderCount    = "holderCount"
)

// DefaultFetchTimeout bounds each individual source fetch including its
// retries.
const DefaultFetchTimeout = 15 * time.Second

// Options configures the Aggregator.
type Options struct {
	Mint          string
	FounderWallet string
	BurnWallet    string

	RPC          solana.RPCClient
	Price        priceindex.Source
	Holders      *holders.Enumerator
	Balances     *balance.Resolver
	Cache        *cache.Slot[TokenStats]
	Retry        retry.Policy
	FetchTimeout time.Duration

	// OnRefresh, when set, receives every freshly computed snapshot
	// (used for the live feed). Called outside the cache lock.
	OnRefresh func(Snapshot)

	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Aggregator produces one TokenStats snapshot per refresh cycle: parallel
// fan-out to the data sources, per-field fallback on terminal failure, and
// a single-flight guard so concurrent cache misses trigger exactly one
// upstream cycle.
type Aggregator struct {
	opts   Options
	flight singleflight.Group
	log    logrus.FieldLogger
	now    func() time.Time
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{opts: opts, log: log, now: now}
}

// GetStats returns the current snapshot, serving from cache when fresh.
// The cache-hit path never touches external services.
func (a *Aggregator) GetStats(ctx context.Context) (Snapshot, error) {
	if value, age, ok := a.opts.Cache.Get(); ok {
		observability.RecordCacheHit()
		ageSec := int64(age.Seconds())
		return Snapshot{TokenStats: value, Cached: true, CacheAgeSeconds: &ageSec}, nil
	}
	observability.RecordCacheMiss()

	// Single flight: the first concurrent caller runs the refresh, the
	// rest wait and reuse its result. The refresh runs on a context
	// detached from any one request so a canceled leader does not fail
	// the followers.
	result, err, _ := a.flight.Do("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.FetchTimeout+5*time.Second)
		defer cancel()
		return a.refresh(refreshCtx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

// Refresh forces a refresh cycle regardless of cache state (used by the
// background refresh ticker).
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	result, err, _ := a.flight.Do("refresh", func() (interface{}, error) {
		return a.refresh(ctx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

// fetchOutcome is one settled fan-out branch.
type fetchOutcome struct {
	field string
	value float64
	err   error
}

// refresh runs the full fan-out/join cycle and caches the result.
func (a *Aggregator) refresh(ctx context.Context) (Snapshot, error) {
	previous, havePrevious := a.opts.Cache.Last()

	outcomes := make(chan fetchOutcome, 5)

	a.fanOut(ctx, outcomes, FieldPrice, func(fctx context.Context) (float64, error) {
		return a.opts.Price.TokenPrice(fctx, a.opts.Mint)
	})
	a.fanOut(ctx, outcomes, FieldTotalSupply, func(fctx context.Context) (float64, error) {
		supply, err := a.opts.RPC.GetTokenSupply(fctx, a.opts.Mint)
		if err != nil {
			return 0, err
		}
		return supply.Value()
	})
	a.fanOut(ctx, outcomes, FieldFounderBalance, func(fctx context.Context) (float64, error) {
		result, err := a.opts.Balances.Resolve(fctx, a.opts.FounderWallet, a.opts.Mint)
		return result.Balance, err
	})
	a.fanOut(ctx, outcomes, FieldBurnedBalance, func(fctx context.Context) (float64, error) {
		result, err := a.opts.Balances.Resolve(fctx, a.opts.BurnWallet, a.opts.Mint)
		return result.Balance, err
	})
	a.fanOut(ctx, outcomes, FieldHolderCount, func(fctx context.Context) (float64, error) {
		count, err := a.opts.Holders.Count(fctx, a.opts.Mint)
		return float64(count), err
	})

	// Join: all branches settle (success or exhausted retries) before
	// snapshot construction. Each branch carries its own timeout, so the
	// join is bounded and one slow source cannot block indefinitely.
	resolved := make(map[string]float64, 5)
	var degraded []string
	for i := 0; i < 5; i++ {
		outcome := <-outcomes
		if outcome.err != nil {
			a.log.WithFields(logrus.Fields{
				"field": outcome.field,
				"error": outcome.err.Error(),
			}).Warn("source fetch failed, using fallback")
			degraded = append(degraded, outcome.field)
			resolved[outcome.field] = a.fallbackValue(outcome.field, previous, havePrevious)
			continue
		}
		resolved[outcome.field] = outcome.value
	}

	if len(degraded) == 5 {
		if havePrevious {
			// Availability over freshness: serve the last snapshot with
			// an explicit marker rather than failing the request.
			observability.RecordRefresh("stale")
			observability.RecordStaleServe()
			return Snapshot{TokenStats: previous, Stale: true, Degraded: degraded}, nil
		}
		observability.RecordRefresh("error")
		return Snapshot{}, ErrAllSourcesUnavailable
	}

	for _, field := range degraded {
		observability.RecordDegradedField(field)
	}

	snapshot := Compute(Inputs{
		Price:          resolved[FieldPrice],
		TotalSupply:    resolved[FieldTotalSupply],
		FounderBalance: resolved[FieldFounderBalance],
		BurnedBalance:  resolved[FieldBurnedBalance],
		HolderCount:    int(resolved[FieldHolderCount]),
	}, a.now())

	if err := CheckConservation(snapshot); err != nil {
		// Advisory: sources are independent and approximately consistent.
		observability.RecordInvariantViolation()
		a.log.WithField("error", err.Error()).Warn("supply conservation check failed")
	}

	a.opts.Cache.Set(snapshot)
	observability.RecordRefresh("success")

	result := Snapshot{TokenStats: snapshot, Degraded: degraded}
	if a.opts.OnRefresh != nil {
		a.opts.OnRefresh(result)
	}
	return result, nil
}

// fanOut launches one fetch branch with its own timeout and retry budget.
// The branch always delivers exactly one outcome.
func (a *Aggregator) fanOut(ctx context.Context, out chan<- fetchOutcome, field string, fetch func(context.Context) (float64, error)) {
	go func() {
		fctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
		defer cancel()

		start := time.Now()
		var value float64
		err := a.opts.Retry.Do(fctx, func(rctx context.Context) error {
			v, ferr := fetch(rctx)
			if ferr != nil {
				return ferr
			}
			value = v
			return nil
		})
		observability.RecordSourceFetch(field, time.Since(start).Seconds(), err)

		out <- fetchOutcome{field: field, value: value, err: err}
	}()
}

// fallbackValue substitutes a terminally failed field: the previous
// snapshot's value when one exists, else a conservative zero.
func (a *Aggregator) fallbackValue(field string, previous TokenStats, havePrevious bool) float64 {
	if !havePrevious {
		return 0
	}
	switch field {
	case FieldPrice:
		return previous.Price
	case FieldTotalSupply:
		return previous.TotalSupply
	case FieldFounderBalance:
		return previous.FounderBalance
	case FieldBurnedBalance:
		return previous.BurnedBalance
	case FieldHolderCount:
		return float64(previous.HolderCount)
	}
	return 0
}
