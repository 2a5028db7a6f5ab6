package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammdepth/internal/book"
	"ammdepth/internal/chain"
	"ammdepth/internal/config"
	"ammdepth/internal/depthcache"
	"ammdepth/internal/dex"
	"ammdepth/internal/engine"
	"ammdepth/internal/model"
	"ammdepth/internal/storage"
	"ammdepth/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "depth",
		Short:        "AMM liquidity depth engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	computeCmd := &cobra.Command{
		Use:   "compute",
		Short: "Reconstruct the order book of a pool",
		RunE:  runCompute,
	}

	addQueryFlags(computeCmd)
	computeCmd.Flags().Duration("cache-ttl", 0, "cache TTL, 0 disables caching")
	computeCmd.Flags().String("redis-addr", "", "Redis address for the shared cache (empty uses in-memory)")
	computeCmd.Flags().Int("redis-db", 0, "Redis database number")
	computeCmd.Flags().String("out", "", "optional JSONL output path")
	computeCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshot persistence")

	root.AddCommand(computeCmd)

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Detect the protocol family of a pool",
		RunE:  runProbe,
	}

	addQueryFlags(probeCmd)

	root.AddCommand(probeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("kind", "", "protocol kind (tick_clmm, bin_dlmm, constant_product, bonding_curve); empty probes")
	cmd.Flags().Float64("reference-price", 0, "current price of the base token in quote terms")
	cmd.Flags().Float64("quote-usd", 0, "quote token USD price, 0 means USD equals quote value")
	cmd.Flags().Int("max-levels", 50, "maximum levels per side")
	cmd.Flags().Float64("precision", 0, "price bucket width, 0 emits raw intervals")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	cmd.Flags().Duration("query-timeout", 30*time.Second, "overall query deadline")
	cmd.Flags().Duration("batch-timeout", 10*time.Second, "per-batch call timeout")
	cmd.Flags().Int("max-retries", 3, "maximum batch retry attempts")
	cmd.Flags().Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	cmd.Flags().Int("max-batch-size", 200, "calls per multicall batch")
	cmd.Flags().String("multicall", "", "multicall contract address override")
	cmd.Flags().Bool("breaker-enabled", false, "enable the RPC circuit breaker")
	cmd.Flags().Int("tick-word-radius", 16, "bitmap words per side of the current tick, 0 scans the full range")
	cmd.Flags().Int("bin-radius", 500, "bins per side of the active bin")
	cmd.Flags().Float64("rate-limit-rps", 0, "RPC requests per second, 0 disables limiting")
	cmd.Flags().Int("rate-limit-burst", 1, "RPC rate limit burst")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runCompute(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	query, err := buildQuery(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, chainClient, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	query.ChainID = chainID.Uint64()

	// Pin latest-block queries to a concrete block so every batch in the
	// computation reads the same state.
	if query.BlockNumber == 0 {
		latest, err := chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		query.BlockNumber = latest
	}

	var cache depthcache.Cache
	if cfg.CacheTTL > 0 {
		if cfg.RedisAddr != "" {
			cache = depthcache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
		} else {
			cache = depthcache.NewMemory()
		}
		defer cache.Close()
	}

	eng := engine.New(registry, cache, engine.Config{
		QueryTimeout: cfg.QueryTimeout,
		CacheTTL:     cfg.CacheTTL,
	}, logger)

	logger.Info("compute start",
		zap.String("pool", query.Pool),
		zap.String("kind", string(query.Kind)),
		zap.Float64("reference_price", query.ReferencePrice),
		zap.Float64("precision", query.Precision),
		zap.Int("max_levels", query.MaxLevels),
		zap.Uint64("block", query.BlockNumber),
	)

	data, err := eng.ComputeDepth(ctx, query)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal depth data: %w", err)
	}
	fmt.Println(string(encoded))

	if cfg.Out != "" {
		sink := storage.NewJsonlStorage(cfg.Out)
		if err := sink.PutDepthSnapshot(data); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertDepthSnapshots(ctx, []model.DepthData{data}); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}
	return nil
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Pool == "" {
		return fmt.Errorf("pool address is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address: %s", cfg.Pool)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, chainClient, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	pool := common.HexToAddress(cfg.Pool)
	code, err := chainClient.CodeAt(ctx, pool)
	if err != nil {
		return fmt.Errorf("get code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract code at %s", pool.Hex())
	}

	kind, err := registry.Probe(ctx, pool, cfg.BlockNumber)
	if err != nil {
		return err
	}

	fmt.Println(kind)
	return nil
}

func buildRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dex.Registry, *chain.Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RateLimitRPS, cfg.RateLimitBurst)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	multicall := chain.NewMulticall(chainClient, chain.MulticallConfig{
		Address:        cfg.Multicall,
		MaxBatchSize:   cfg.MaxBatchSize,
		BatchTimeout:   cfg.BatchTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		BreakerEnabled: cfg.BreakerEnabled,
	}, logger)

	registry := dex.NewRegistry(dex.Deps{
		Multicall: multicall,
		Tokens:    dex.NewTokenMetaCache(),
		Logger:    logger,
		Config: dex.Config{
			TickWordRadius: cfg.TickWordRadius,
			BinRadius:      cfg.BinRadius,
			Book:           book.Config{},
		},
	})
	return registry, chainClient, nil
}

func buildQuery(cfg config.Config) (model.Query, error) {
	if cfg.Pool == "" {
		return model.Query{}, fmt.Errorf("pool address is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return model.Query{}, fmt.Errorf("invalid pool address: %s", cfg.Pool)
	}

	kind := model.ProtocolKind(cfg.Kind)
	if cfg.Kind != "" && !kind.Valid() {
		return model.Query{}, fmt.Errorf("unknown protocol kind: %s", cfg.Kind)
	}
	if cfg.Kind == "" {
		kind = model.KindUnknown
	}

	query := model.Query{
		Pool:           cfg.Pool,
		Kind:           kind,
		ReferencePrice: cfg.ReferencePrice,
		QuoteUSD:       cfg.QuoteUSD,
		MaxLevels:      cfg.MaxLevels,
		Precision:      cfg.Precision,
		BlockNumber:    cfg.BlockNumber,
	}
	if err := query.Validate(); err != nil {
		return model.Query{}, err
	}
	return query, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
