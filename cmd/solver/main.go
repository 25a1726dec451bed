// Command solver wires the batch solver's components into a runnable
// process: config, logger, chain client, pair registry, storage cache,
// monitoring API, and the driver's event loop. Adapted from the teacher's
// node entrypoint (cmd/node/main.go), replacing the consensus node with
// the solver driver and its DEX-facing chain client.
package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/chain"
	"github.com/veilswap/batchsolver/pkg/crypto"
	"github.com/veilswap/batchsolver/pkg/market"
	"github.com/veilswap/batchsolver/params"
	"github.com/veilswap/batchsolver/pkg/safeparams"
	"github.com/veilswap/batchsolver/pkg/solver"
	"github.com/veilswap/batchsolver/pkg/storage"
	"github.com/veilswap/batchsolver/pkg/util"

	"github.com/veilswap/batchsolver/pkg/api"
)

func main() {
	envPath := flag.String("env", "", "path to .env file (optional)")
	listenAddr := flag.String("listen", ":8090", "monitoring API listen address")
	cachePath := flag.String("cache", "data/solver-cache", "pebble cache directory")
	devnet := flag.Bool("devnet", true, "seed an in-memory mock chain client instead of a live RPC endpoint")
	flag.Parse()

	logger, err := util.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := params.LoadFromEnv(*envPath)
	logger.Info("configuration loaded",
		zap.Int("max_orders_per_batch", cfg.MaxOrdersPerBatch),
		zap.Int("max_price_levels", cfg.MaxPriceLevels),
		zap.Duration("batch_duration", cfg.BatchDuration),
	)

	cache, err := storage.Open(*cachePath)
	if err != nil {
		logger.Fatal("failed to open cache", zap.Error(err))
	}
	defer cache.Close()

	operator, err := loadOrGenerateOperator(logger)
	if err != nil {
		logger.Fatal("failed to establish operator signing key", zap.Error(err))
	}
	logger.Info("operator key ready", zap.String("address", operator.Address().Hex()))

	var client chain.Client
	var mockClient *chain.MockClient
	if *devnet {
		mockClient = newDevnetClient(cfg)
		client = mockClient
	} else {
		logger.Fatal("live chain RPC client not configured; pass --devnet for local runs")
	}

	pairs := market.NewRegistry()
	pairID := seedDevnetPairs(pairs)
	if *devnet {
		seedDevnetOrders(logger, mockClient, pairID)
	}

	driver := solver.New(cfg, client, pairs, util.RealClock{}, logger, cache, operator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := driver.Init(ctx); err != nil {
		logger.Warn("driver init reported an error; continuing in AWAITING_ORDERS", zap.Error(err))
	}

	server := api.NewServer(driver, pairs)
	driver.SetObserver(server)
	go func() {
		if err := server.Start(*listenAddr); err != nil {
			logger.Error("monitoring API stopped", zap.Error(err))
		}
	}()

	go driver.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()
	time.Sleep(200 * time.Millisecond)
}

// newDevnetClient returns an in-memory chain client seeded with one batch,
// for local development and demos (no live DEX contract required).
func newDevnetClient(cfg params.Config) *chain.MockClient {
	now := time.Now().Unix()
	return chain.NewMockClient(1, now+int64(cfg.BatchDuration.Seconds()), int64(cfg.BatchDuration.Seconds()))
}

func seedDevnetPairs(registry *market.Registry) market.PairID {
	tokenA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB := common.HexToAddress("0x2222222222222222222222222222222222222222")
	pairID := market.DerivePairID(tokenA, tokenB)
	_ = registry.Register(&market.PairInfo{
		ID:     pairID,
		TokenA: tokenA,
		TokenB: tokenB,
	})
	return pairID
}

// loadOrGenerateOperator loads the solver's operator signing key from
// OPERATOR_PRIVATE_KEY (hex, for a stable identity across restarts), or
// generates a fresh one for this process when unset (fine for devnet
// runs; a live deployment should always set the env var).
func loadOrGenerateOperator(logger *zap.Logger) (*crypto.Signer, error) {
	if hexKey := os.Getenv("OPERATOR_PRIVATE_KEY"); hexKey != "" {
		return crypto.FromPrivateKeyHex(hexKey)
	}
	logger.Warn("OPERATOR_PRIVATE_KEY not set; generating an ephemeral operator key for this process")
	return crypto.GenerateKey()
}

// seedDevnetOrderSeedPrice is the fallback public price used to seed
// devnet test orders when DEVNET_SEED_PRICE is unset or malformed.
const seedDevnetOrderSeedPrice = "1000"

// seedDevnetOrders stores one crossing buy/sell pair of test orders in the
// mock chain client, where Order and ActiveOrderIDs return them. It emits
// no OrderPlaced events, so the driver does not ingest these orders into
// its batch state. The seed price comes from DEVNET_SEED_PRICE (an
// unsigned 256-bit decimal, spec §3 public_price), parsed with
// safeparams.ParseUint256 so a malformed override can't panic startup.
func seedDevnetOrders(logger *zap.Logger, client *chain.MockClient, pairID market.PairID) {
	priceStr := os.Getenv("DEVNET_SEED_PRICE")
	if priceStr == "" {
		priceStr = seedDevnetOrderSeedPrice
	}
	price, ok := safeparams.ParseUint256(priceStr)
	if !ok {
		logger.Warn("invalid DEVNET_SEED_PRICE, falling back to default", zap.String("value", priceStr))
		price, _ = safeparams.ParseUint256(seedDevnetOrderSeedPrice)
	}

	now := time.Now()
	encAmt := make([]byte, 132)
	for i := range encAmt {
		encAmt[i] = byte(i*7 + 11)
	}

	var buyID, sellID batch.OrderID
	buyID[0] = 0x01
	sellID[0] = 0x02

	client.SeedOrder(batch.Order{
		ID:              buyID,
		Trader:          common.HexToAddress("0xaaaa000000000000000000000000000000aaaa"),
		PairID:          pairID,
		OrderType:       batch.Buy,
		PublicPrice:     new(big.Int).Add(price, big.NewInt(10)),
		EncryptedAmount: encAmt,
		Status:          batch.Pending,
		Timestamp:       now,
	})
	client.SeedOrder(batch.Order{
		ID:              sellID,
		Trader:          common.HexToAddress("0xbbbb000000000000000000000000000000bbbb"),
		PairID:          pairID,
		OrderType:       batch.Sell,
		PublicPrice:     new(big.Int).Sub(price, big.NewInt(10)),
		EncryptedAmount: encAmt,
		Status:          batch.Pending,
		Timestamp:       now,
	})
}
