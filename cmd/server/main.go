// Package main runs the meme stats backend: the upload API, the token
// statistics aggregator, and the websocket feed behind one HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"memestats-backend/internal/balance"
	"memestats-backend/internal/cache"
	"memestats-backend/internal/config"
	"memestats-backend/internal/holders"
	"memestats-backend/internal/httpapi"
	"memestats-backend/internal/indexer"
	"memestats-backend/internal/observability"
	"memestats-backend/internal/priceindex"
	"memestats-backend/internal/ratelimit"
	"memestats-backend/internal/retry"
	"memestats-backend/internal/solana"
	"memestats-backend/internal/stats"
	"memestats-backend/internal/storage"
	chstore "memestats-backend/internal/storage/clickhouse"
	"memestats-backend/internal/storage/memory"
	"memestats-backend/internal/storage/migrations"
	pgstore "memestats-backend/internal/storage/postgres"
	"memestats-backend/internal/upload"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; system env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := newLogger(cfg.Server.Environment)

	if err := run(cfg, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newLogger(environment string) *logrus.Logger {
	log := logrus.New()
	if environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for name, addr := range map[string]string{
		"TOKEN_MINT":     cfg.Token.Mint,
		"FOUNDER_WALLET": cfg.Token.FounderWallet,
		"BURN_WALLET":    cfg.Token.BurnWallet,
	} {
		if err := solana.ValidateAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	memes, history, cleanupStores, err := createStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupStores()

	objects, err := createObjectStore(cfg)
	if err != nil {
		return err
	}

	priceSource, err := createPriceSource(cfg)
	if err != nil {
		return err
	}

	rpc := solana.NewHTTPClient(cfg.Sources.RPCEndpoint, solana.WithTimeout(cfg.Stats.FetchTimeout))
	idx := indexer.NewHTTPClient(cfg.Sources.IndexerBaseURL, cfg.Sources.IndexerAPIKey)

	hub := httpapi.NewHub(log, nil)

	aggregator := stats.New(stats.Options{
		Mint:          cfg.Token.Mint,
		FounderWallet: cfg.Token.FounderWallet,
		BurnWallet:    cfg.Token.BurnWallet,
		RPC:           rpc,
		Price:         priceSource,
		Holders:       holders.NewEnumerator(idx, cfg.Stats.HolderPageSize),
		Balances:      balance.NewResolver(rpc, log),
		Cache:         cache.New[stats.TokenStats](cfg.Stats.CacheTTL),
		Retry: retry.Policy{
			MaxAttempts: cfg.Stats.RetryAttempts,
			Delay:       cfg.Stats.RetryBaseDelay,
			MaxDelay:    10 * time.Second,
			Multiplier:  2.0,
		},
		FetchTimeout: cfg.Stats.FetchTimeout,
		OnRefresh: func(snapshot stats.Snapshot) {
			hub.Broadcast(snapshot)
			recordHistory(ctx, history, cfg.Token.Mint, snapshot, log)
		},
		Logger: log,
	})

	var limiter ratelimit.Counter
	if cfg.RateLimit.RedisURL != "" {
		counter, err := ratelimit.NewRedisCounter(cfg.RateLimit.RedisURL)
		if err != nil {
			return fmt.Errorf("rate limit redis: %w", err)
		}
		defer counter.Close()
		limiter = counter
	}

	router := httpapi.NewRouter(httpapi.Options{
		Stats:            aggregator,
		Memes:            memes,
		Objects:          objects,
		MaxUploadBytes:   cfg.Upload.MaxBytes,
		Hub:              hub,
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimitCounter: limiter,
		RateLimit: ratelimit.Limit{
			Requests: cfg.RateLimit.MaxRequests,
			Window:   cfg.RateLimit.Window,
		},
		Metrics: observability.DefaultMetrics,
		Logger:  log,
	})

	if cfg.Stats.RefreshInterval > 0 {
		go runRefreshLoop(ctx, aggregator, cfg.Stats.RefreshInterval, log)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	cancel()
	hub.Close(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// createStores builds the meme and stats history stores for the configured
// backend.
func createStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.MemeStore, storage.StatsHistoryStore, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return memory.NewMemeStore(), memory.NewStatsHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// Stats history is optional; without a clickhouse DSN samples are kept
	// in memory only.
	if cfg.Storage.ClickhouseDSN == "" {
		log.Warn("no clickhouse dsn, stats history will not be persisted")
		cleanup := func() { pool.Close() }
		return pgstore.NewMemeStore(pool), memory.NewStatsHistoryStore(), cleanup, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return pgstore.NewMemeStore(pool), chstore.NewStatsHistoryStore(conn), cleanup, nil
}

func createObjectStore(cfg *config.Config) (upload.ObjectStore, error) {
	if cfg.Upload.Backend == "fs" {
		return upload.NewFSStore(cfg.Upload.FSRoot, cfg.Upload.BaseURL)
	}
	return upload.NewMemoryStore(), nil
}

func createPriceSource(cfg *config.Config) (priceindex.Source, error) {
	switch cfg.Sources.PriceProvider {
	case "binance":
		return priceindex.NewBinanceSource("", "", cfg.Sources.PriceSymbol), nil
	case "geckoterminal":
		return priceindex.NewGeckoClient(), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Sources.PriceProvider)
	}
}

// recordHistory appends a snapshot to the stats history store.
func recordHistory(ctx context.Context, history storage.StatsHistoryStore, mint string, snapshot stats.Snapshot, log logrus.FieldLogger) {
	point := &storage.StatsPoint{
		Mint:              mint,
		TimestampMs:       snapshot.LastUpdated.UnixMilli(),
		Price:             snapshot.Price,
		TotalSupply:       snapshot.TotalSupply,
		FounderBalance:    snapshot.FounderBalance,
		BurnedBalance:     snapshot.BurnedBalance,
		CirculatingSupply: snapshot.CirculatingSupply,
		MarketCap:         snapshot.MarketCap,
		HolderCount:       snapshot.HolderCount,
	}
	if err := history.Insert(ctx, point); err != nil {
		log.WithError(err).Warn("recording stats history failed")
	}
}

// runRefreshLoop keeps the cache warm so clients rarely hit a cold miss.
func runRefreshLoop(ctx context.Context, aggregator *stats.Aggregator, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := aggregator.Refresh(ctx); err != nil {
				log.WithError(err).Warn("background refresh failed")
			}
		}
	}
}
