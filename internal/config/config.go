package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server    ServerConfig
	Token     TokenConfig
	Sources   SourcesConfig
	Stats     StatsConfig
	Upload    UploadConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string `validate:"required"`
	Environment string `validate:"oneof=development production test"`
	CORSOrigins []string
}

type TokenConfig struct {
	Mint          string `validate:"required"`
	FounderWallet string `validate:"required"`
	BurnWallet    string `validate:"required"`
}

type SourcesConfig struct {
	RPCEndpoint    string `validate:"required,url"`
	IndexerBaseURL string `validate:"required,url"`
	IndexerAPIKey  string
	PriceProvider  string `validate:"oneof=geckoterminal binance"`
	PriceSymbol    string
}

type StatsConfig struct {
	CacheTTL        time.Duration `validate:"gt=0"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	RetryAttempts   int           `validate:"gte=1"`
	RetryBaseDelay  time.Duration `validate:"gt=0"`
	HolderPageSize  int           `validate:"gt=0"`
	RefreshInterval time.Duration // 0 = refresh on demand only
}

type UploadConfig struct {
	MaxBytes int64  `validate:"gt=0"`
	Backend  string `validate:"oneof=fs memory"`
	FSRoot   string
	BaseURL  string
}

type StorageConfig struct {
	Backend       string `validate:"oneof=memory db"`
	PostgresDSN   string
	ClickhouseDSN string
}

type RateLimitConfig struct {
	RedisURL    string // empty disables rate limiting
	Window      time.Duration
	MaxRequests int64
}

// Load builds the configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			CORSOrigins: splitEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Token: TokenConfig{
			Mint:          getEnv("TOKEN_MINT", ""),
			FounderWallet: getEnv("FOUNDER_WALLET", ""),
			BurnWallet:    getEnv("BURN_WALLET", ""),
		},
		Sources: SourcesConfig{
			RPCEndpoint:    getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			IndexerBaseURL: getEnv("INDEXER_BASE_URL", "https://mainnet.helius-rpc.com"),
			IndexerAPIKey:  getEnv("INDEXER_API_KEY", ""),
			PriceProvider:  getEnv("PRICE_PROVIDER", "geckoterminal"),
			PriceSymbol:    getEnv("PRICE_SYMBOL", ""),
		},
		Stats: StatsConfig{
			CacheTTL:        getEnvAsDuration("STATS_CACHE_TTL", 60*time.Second),
			FetchTimeout:    getEnvAsDuration("STATS_FETCH_TIMEOUT", 15*time.Second),
			RetryAttempts:   getEnvAsInt("STATS_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:  getEnvAsDuration("STATS_RETRY_BASE_DELAY", time.Second),
			HolderPageSize:  getEnvAsInt("STATS_HOLDER_PAGE_SIZE", 1000),
			RefreshInterval: getEnvAsDuration("STATS_REFRESH_INTERVAL", 0),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),
			Backend:  getEnv("UPLOAD_BACKEND", "memory"),
			FSRoot:   getEnv("UPLOAD_FS_ROOT", "./uploads"),
			BaseURL:  getEnv("UPLOAD_BASE_URL", "/media"),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "memory"),
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
			ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			RedisURL:    getEnv("REDIS_URL", ""),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxRequests: int64(getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 120)),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == "db" {
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("config: POSTGRES_DSN is required when STORAGE_BACKEND=db")
		}
	}
	if cfg.Sources.PriceProvider == "binance" && cfg.Sources.PriceSymbol == "" {
		return nil, fmt.Errorf("config: PRICE_SYMBOL is required when PRICE_PROVIDER=binance")
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	var fields []string
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config: invalid fields: %s", strings.Join(fields, ", "))
	}
	return fmt.Errorf("config: %w", err)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a duration in seconds (plain integers) or any
// time.ParseDuration form ("90s", "2m").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
