package stats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"memestats-backend/internal/balance"
	"memestats-backend/internal/cache"
	"memestats-backend/internal/holders"
	"memestats-backend/internal/indexer"
	"memestats-backend/internal/retry"
	"memestats-backend/internal/solana"
	"memestats-backend/internal/solana/stub"
	"memestats-backend/internal/upstream"
)

const (
	testMint    = "MintAddr111111111111111111111111"
	testFounder = "FounderWallet1111111111111111111"
	testBurn    = "BurnWallet1111111111111111111111"
)

// fakePriceSource counts calls and optionally fails or blocks.
type fakePriceSource struct {
	price float64
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (f *fakePriceSource) TokenPrice(ctx context.Context, _ string) (float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, upstream.Retryable(ctx.Err())
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

// fakeIndexer serves a fixed owner list in one page.
type fakeIndexer struct {
	owners []string
	err    error
	calls  atomic.Int64
}

func (f *fakeIndexer) TokenAccountsPage(_ context.Context, _ string, page, _ int) ([]indexer.HolderAccount, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if page > 1 {
		return nil, nil
	}
	accounts := make([]indexer.HolderAccount, len(f.owners))
	for i, owner := range f.owners {
		accounts[i] = indexer.HolderAccount{Address: owner + "-acct", Owner: owner, Amount: 1}
	}
	return accounts, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testFixture wires an aggregator over fully stubbed sources.
type testFixture struct {
	agg   *Aggregator
	rpc   *stub.RPCClient
	price *fakePriceSource
	idx   *fakeIndexer
	slot  *cache.Slot[TokenStats]
	clock *testClock
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T, ttl time.Duration) *testFixture {
	t.Helper()

	clock := &testClock{t: time.Unix(1700000000, 0)}

	rpc := stub.NewRPCClient()
	rpc.Supplies[testMint] = solana.TokenAmount{Amount: "1000000000000000", Decimals: intPtr(6)} // 1e9 units
	rpc.Accounts[testFounder] = []solana.TokenAccount{
		{Pubkey: "fa1", Amount: solana.TokenAmount{Amount: "150000000000000", Decimals: intPtr(6)}}, // 1.5e8
	}
	rpc.Accounts[testBurn] = []solana.TokenAccount{
		{Pubkey: "ba1", Amount: solana.TokenAmount{Amount: "50000000000000", Decimals: intPtr(6)}}, // 5e7
	}

	price := &fakePriceSource{price: 0.002}
	idx := &fakeIndexer{owners: []string{"o1", "o2", "o3"}}
	slot := cache.New(ttl, cache.WithClock[TokenStats](clock.Now))

	log := logrus.New()
	log.SetOutput(io.Discard)

	agg := New(Options{
		Mint:          testMint,
		FounderWallet: testFounder,
		BurnWallet:    testBurn,
		RPC:           rpc,
		Price:         price,
		Holders:       holders.NewEnumerator(idx, 1000),
		Balances:      balance.NewResolver(rpc, log),
		Cache:         slot,
		Retry:         retry.Policy{MaxAttempts: 1},
		FetchTimeout:  2 * time.Second,
		Logger:        log,
		Now:           clock.Now,
	})

	return &testFixture{agg: agg, rpc: rpc, price: price, idx: idx, slot: slot, clock: clock}
}

func TestGetStats_FreshSnapshot(t *testing.T) {
	f := newFixture(t, time.Minute)

	snap, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if snap.Cached {
		t.Error("first snapshot must not be cached")
	}
	if snap.Stale {
		t.Error("fresh snapshot must not be stale")
	}
	if len(snap.Degraded) != 0 {
		t.Errorf("no fields should be degraded, got %v", snap.Degraded)
	}
	if snap.TotalSupply != 1e9 {
		t.Errorf("expected supply 1e9, got %f", snap.TotalSupply)
	}
	if snap.FounderBalance != 1.5e8 {
		t.Errorf("expected founder 1.5e8, got %f", snap.FounderBalance)
	}
	if snap.BurnedBalance != 5e7 {
		t.Errorf("expected burned 5e7, got %f", snap.BurnedBalance)
	}
	if snap.CirculatingSupply != 8e8 {
		t.Errorf("expected circulating 8e8, got %f", snap.CirculatingSupply)
	}
	if snap.HolderCount != 3 {
		t.Errorf("expected 3 holders, got %d", snap.HolderCount)
	}
	if snap.MarketCap != 8e8*0.002 {
		t.Errorf("expected market cap %f, got %f", 8e8*0.002, snap.MarketCap)
	}
}

func TestGetStats_CacheHitIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Minute)

	first, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	f.clock.Advance(10 * time.Second)

	second, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if !second.Cached {
		t.Error("second call within TTL must be a cache hit")
	}
	if second.CacheAgeSeconds == nil || *second.CacheAgeSeconds != 10 {
		t.Errorf("expected cacheAge 10, got %v", second.CacheAgeSeconds)
	}
	if !reflect.DeepEqual(first.TokenStats, second.TokenStats) {
		t.Error("cached payload must be identical except cacheAge")
	}

	// Upstreams were hit exactly once.
	if calls := f.price.calls.Load(); calls != 1 {
		t.Errorf("expected 1 price fetch, got %d", calls)
	}
	if calls := f.rpc.SupplyCalls.Load(); calls != 1 {
		t.Errorf("expected 1 supply fetch, got %d", calls)
	}
}

func TestGetStats_CacheAgeResetsAfterRefresh(t *testing.T) {
	f := newFixture(t, time.Minute)

	if _, err := f.agg.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	f.clock.Advance(2 * time.Minute) // expire

	snap, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats after expiry: %v", err)
	}
	if snap.Cached {
		t.Error("post-expiry call must refresh")
	}

	hit, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if hit.CacheAgeSeconds == nil || *hit.CacheAgeSeconds != 0 {
		t.Errorf("cacheAge must reset to ~0 after refresh, got %v", hit.CacheAgeSeconds)
	}
}

func TestGetStats_PriceFallbackToPrevious(t *testing.T) {
	f := newFixture(t, time.Minute)

	// Prime the cache, then expire it and fail the price source.
	if _, err := f.agg.GetStats(context.Background()); err != nil {
		t.Fatalf("prime: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	f.price.err = upstream.Unavailable(errors.New("price api down"))

	snap, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if snap.Price != 0.002 {
		t.Errorf("expected previous price 0.002, got %f", snap.Price)
	}
	if len(snap.Degraded) != 1 || snap.Degraded[0] != FieldPrice {
		t.Errorf("expected degraded [price], got %v", snap.Degraded)
	}
	if snap.Stale {
		t.Error("partially degraded snapshot is not stale")
	}
}

func TestGetStats_PriceDefaultsToZeroWithoutPrevious(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.price.err = upstream.Unavailable(errors.New("price api down"))

	snap, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("snapshot must still be produced: %v", err)
	}

	if snap.Price != 0 {
		t.Errorf("expected zero price default, got %f", snap.Price)
	}
	if len(snap.Degraded) != 1 || snap.Degraded[0] != FieldPrice {
		t.Errorf("expected degraded [price], got %v", snap.Degraded)
	}
	if snap.MarketCap != 0 {
		t.Errorf("market cap must be 0 with zero price, got %f", snap.MarketCap)
	}
}

func failAllSources(f *testFixture) {
	f.price.err = upstream.Unavailable(errors.New("down"))
	f.rpc.SupplyErr = upstream.Unavailable(errors.New("down"))
	f.rpc.AccountsErr = upstream.Unavailable(errors.New("down"))
	f.idx.err = upstream.Unavailable(errors.New("down"))
}

func TestGetStats_TotalFailureWithoutCache(t *testing.T) {
	f := newFixture(t, time.Minute)
	failAllSources(f)

	_, err := f.agg.GetStats(context.Background())
	if !errors.Is(err, ErrAllSourcesUnavailable) {
		t.Fatalf("expected ErrAllSourcesUnavailable, got %v", err)
	}
}

func TestGetStats_TotalFailureServesStale(t *testing.T) {
	f := newFixture(t, time.Minute)

	first, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("prime: %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	failAllSources(f)

	snap, err := f.agg.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stale fallback must not fail: %v", err)
	}
	if !snap.Stale {
		t.Error("expected stale marker")
	}
	if !reflect.DeepEqual(snap.TokenStats, first.TokenStats) {
		t.Error("stale snapshot must carry the previous stats")
	}
}

func TestGetStats_SingleFlight(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.price.delay = 50 * time.Millisecond // hold the refresh open

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.agg.GetStats(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	if calls := f.price.calls.Load(); calls != 1 {
		t.Errorf("expected exactly 1 upstream refresh cycle, got %d price fetches", calls)
	}
	if calls := f.rpc.SupplyCalls.Load(); calls != 1 {
		t.Errorf("expected exactly 1 supply fetch, got %d", calls)
	}
}

func TestGetStats_OnRefreshHook(t *testing.T) {
	f := newFixture(t, time.Minute)

	var published []Snapshot
	var mu sync.Mutex
	f.agg.opts.OnRefresh = func(s Snapshot) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	}

	if _, err := f.agg.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	// Cache hit must not publish.
	if _, err := f.agg.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 {
		t.Errorf("expected 1 published snapshot, got %d", len(published))
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	ageSec := int64(12)
	snap := Snapshot{
		TokenStats:      Compute(Inputs{Price: 1, TotalSupply: 10}, time.Unix(1700000000, 0).UTC()),
		Cached:          true,
		CacheAgeSeconds: &ageSec,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"price", "totalSupply", "circulatingSupply", "holderCount", "marketCap", "burnRate", "lastUpdated", "cached", "cacheAge"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in payload", key)
		}
	}
	if _, ok := decoded["stale"]; ok {
		t.Error("stale must be omitted when false")
	}
	if _, ok := decoded["degraded"]; ok {
		t.Error("degraded must be omitted when empty")
	}
}
