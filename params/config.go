// Package params holds the solver's runtime configuration (spec §6
// "Configuration (recognised options)").
package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/veilswap/batchsolver/pkg/safeparams"
)

// Config is every recognised configuration option (spec §6).
type Config struct {
	// MaxOrdersPerBatch caps batch size before matching. Default 1000
	// (500 on Avalanche presets, spec §6).
	MaxOrdersPerBatch int

	// MaxPriceLevels caps the price-level search in matching.
	MaxPriceLevels int

	// MinLiquidity is the estimated-volume floor below which a price
	// level is ignored, absent a per-pair override (pkg/market.PairInfo).
	MinLiquidity uint64

	// MaxSlippage is reserved for future non-uniform-price variants;
	// unused by the clearing algorithm (spec §6).
	MaxSlippage uint64

	// BatchDuration is seconds per batch, clamped to [60, 86400].
	BatchDuration time.Duration

	// UseParallelProcessing enables per-pair parallel matching.
	UseParallelProcessing bool

	// UseFastSettlement enables a lower-latency submission path.
	UseFastSettlement bool
}

const (
	minBatchDuration = 60 * time.Second
	maxBatchDuration = 86400 * time.Second
)

// Default returns the solver's out-of-the-box configuration.
func Default() Config {
	return Config{
		MaxOrdersPerBatch:     1000,
		MaxPriceLevels:        100,
		MinLiquidity:          0,
		MaxSlippage:           0,
		BatchDuration:         minBatchDuration,
		UseParallelProcessing: true,
		UseFastSettlement:     false,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("MAX_ORDERS_PER_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOrdersPerBatch = n
		}
	}
	if v := os.Getenv("MAX_PRICE_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPriceLevels = n
		}
	}
	if v := os.Getenv("MIN_LIQUIDITY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MinLiquidity = n
		}
	}
	if v := os.Getenv("MAX_SLIPPAGE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxSlippage = n
		}
	}
	if v := os.Getenv("BATCH_DURATION_SECONDS"); v != "" {
		secs := safeparams.ParseDurationSeconds(v,
			int64(minBatchDuration/time.Second),
			int64(maxBatchDuration/time.Second),
			int64(cfg.BatchDuration/time.Second))
		cfg.BatchDuration = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("USE_PARALLEL_PROCESSING"); v != "" {
		cfg.UseParallelProcessing = v == "true"
	}
	if v := os.Getenv("USE_FAST_SETTLEMENT"); v != "" {
		cfg.UseFastSettlement = v == "true"
	}

	cfg.BatchDuration = clampDuration(cfg.BatchDuration)
	return cfg
}

func clampDuration(d time.Duration) time.Duration {
	if d < minBatchDuration {
		return minBatchDuration
	}
	if d > maxBatchDuration {
		return maxBatchDuration
	}
	return d
}
