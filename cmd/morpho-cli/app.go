package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/otel"

	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/coingecko"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/dexscreener"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/ethereum"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/memory"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/morphoapi"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/redis"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/sns"
	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl/stl-morpho/internal/application"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/multicall"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/env"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
	"github.com/archon-research/stl/stl-morpho/internal/services/position"
	"github.com/archon-research/stl/stl-morpho/internal/services/pricing"
	"github.com/archon-research/stl/stl-morpho/internal/services/resolver"
	"github.com/archon-research/stl/stl-morpho/internal/services/token_metadata"
	"github.com/archon-research/stl/stl-morpho/internal/services/vault_tx"
)

// app holds the wired service and everything that needs closing.
type app struct {
	logger  *slog.Logger
	chain   blockchain.ChainConfig
	service *application.LendingService
	metrics *telemetry.Metrics
	prom    *telemetry.PrometheusMetrics

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	if a.prom != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.prom.Shutdown(ctx); err != nil {
			a.logger.Warn("meter provider shutdown failed", "error", err)
		}
	}
}

func resolveChainID(flagValue string) (int64, error) {
	raw := env.ResolveOr("mainnet", env.Value(flagValue), env.Var("CHAIN_ID"))
	if id, ok := blockchain.ChainIDByName(raw); ok {
		return id, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown chain %q", raw)
	}
	if _, ok := blockchain.GetChainConfig(id); !ok {
		return 0, fmt.Errorf("chain %d is not supported", id)
	}
	return id, nil
}

// resolveRPCURL picks the -rpc flag, then RPC_URL, then the chain's public
// endpoint. public reports whether the last one was used.
func resolveRPCURL(flagValue string, chain blockchain.ChainConfig) (url string, public bool) {
	url, source := env.Resolve(env.Value(flagValue), env.Var("RPC_URL"), env.Lookup(chain.Defaults(), "RPC_URL"))
	return url, source == 2
}

func newApp(ctx context.Context, logger *slog.Logger, f flags) (*app, error) {
	chainID, err := resolveChainID(f.chain)
	if err != nil {
		return nil, err
	}
	chain, _ := blockchain.GetChainConfig(chainID)
	a := &app{logger: logger, chain: chain}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	tracerCfg := telemetry.TracerConfigDefaults()
	tracerCfg.ServiceVersion = GitCommit
	tracerCfg.Environment = env.Get("ENVIRONMENT", tracerCfg.Environment)
	tracerCfg.OTLPEndpoint = env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if env.Get("OTEL_TRACES_STDOUT", "") == "true" {
		tracerCfg.Stdout = os.Stderr
	}
	shutdownTracer, err := telemetry.InitTracer(ctx, tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracer(ctx)
	})

	mp := otel.GetMeterProvider()
	if f.mode == "serve" {
		a.prom, err = telemetry.InitPrometheusMetrics(telemetry.MetricConfig{
			ServiceName:    tracerCfg.ServiceName,
			ServiceVersion: tracerCfg.ServiceVersion,
			Environment:    tracerCfg.Environment,
			SetGlobal:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing metrics: %w", err)
		}
		mp = a.prom.Provider
	}
	a.metrics, err = telemetry.NewMetricsWithProviders(otel.GetTracerProvider(), mp)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	rpcURL, public := resolveRPCURL(f.rpcURL, chain)
	if rpcURL == "" {
		return nil, errors.New("RPC URL not provided (use -rpc flag or RPC_URL env var)")
	}
	if public {
		logger.Warn("no RPC URL configured, using the public endpoint", "chain", chain.Name, "url", rpcURL)
	}
	eth, err := ethereum.Dial(ctx, ethereum.Config{
		RPCURL:  rpcURL,
		ChainID: chainID,
		Logger:  logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to chain %s: %w", chain.Name, err)
	}
	a.closers = append(a.closers, func() error { eth.Close(); return nil })

	multicaller, err := multicall.NewClient(eth, chain.Multicall3)
	if err != nil {
		return nil, err
	}

	index := morphoapi.NewClient(morphoapi.ClientConfig{
		Endpoint: env.Get("MORPHO_API_URL", ""),
		Logger:   logger,
		Metrics:  a.metrics,
	})

	cache, err := newTokenCache(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cache.Close)

	sink, err := newEventSink(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sink.Close)

	prices, err := pricing.NewService(pricing.ServiceConfig{Logger: logger, Metrics: a.metrics},
		dexscreener.NewClient(dexscreener.ClientConfig{Logger: logger}),
		coingecko.NewClient(coingecko.ClientConfig{APIKey: env.Get("COINGECKO_API_KEY", ""), Logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pricing service: %w", err)
	}

	tokens, err := token_metadata.NewService(multicaller, cache, logger)
	if err != nil {
		return nil, fmt.Errorf("creating token metadata service: %w", err)
	}

	resolverSvc, err := resolver.NewService(index, logger)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	positions, err := position.NewService(position.ServiceConfig{
		ChainID:    chainID,
		MorphoBlue: chain.MorphoBlue,
		Logger:     logger,
		Metrics:    a.metrics,
	}, multicaller, index, prices, tokens)
	if err != nil {
		return nil, fmt.Errorf("creating position service: %w", err)
	}

	vaultCfg := vault_tx.ServiceConfigDefaults()
	vaultCfg.ChainID = chainID
	vaultCfg.Logger = logger
	vaultCfg.Metrics = a.metrics
	vaultCfg.EventSink = sink
	vaults, err := vault_tx.NewService(vaultCfg, resolverSvc, multicaller, index, tokens, eth, eth)
	if err != nil {
		return nil, fmt.Errorf("creating vault service: %w", err)
	}

	a.service, err = application.NewLendingService(application.LendingConfig{
		ChainID: chainID,
		Logger:  logger,
	}, index, eth, resolverSvc, positions, vaults)
	if err != nil {
		return nil, fmt.Errorf("creating lending service: %w", err)
	}

	logger.Info("initialized", "chain", chain.Name, "chainId", chainID, "commit", GitCommit)
	ok = true
	return a, nil
}

// newTokenCache uses Redis when REDIS_ADDR is set and memory otherwise.
func newTokenCache(ctx context.Context, logger *slog.Logger) (outbound.TokenMetadataCache, error) {
	addr := env.Get("REDIS_ADDR", "")
	if addr == "" {
		return memory.NewTokenCache(), nil
	}
	cfg := redis.ConfigDefaults()
	cfg.Addr = addr
	cfg.Password = env.Get("REDIS_PASSWORD", "")
	cache, err := redis.NewTokenCache(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating redis token cache: %w", err)
	}
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return cache, nil
}

// newEventSink publishes plan steps to SNS when SNS_TOPIC_ARN is set and
// keeps them in memory otherwise.
func newEventSink(ctx context.Context, logger *slog.Logger) (outbound.EventSink, error) {
	topic := env.Get("SNS_TOPIC_ARN", "")
	if topic == "" {
		return memory.NewEventSink(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(env.Get("AWS_REGION", "us-east-1")))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	cfg := sns.ConfigDefaults()
	cfg.TopicARN = topic
	cfg.Logger = logger
	sink, err := sns.NewEventSink(awssns.NewFromConfig(awsCfg), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating SNS event sink: %w", err)
	}
	return sink, nil
}
