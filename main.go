// Copyright 2025 Certen Protocol
//
// main wires the batch submitter's single binary: load config, build
// the storage backend, the proof and DA ports, the L1 client/submitter,
// and hand everything to the orchestrator. Bootstrap failures exit
// non-zero before the main loop ever starts; once running, only a
// signal-driven shutdown exits cleanly.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/config"
	"github.com/certen/batch-submitter/pkg/da"
	"github.com/certen/batch-submitter/pkg/l1"
	"github.com/certen/batch-submitter/pkg/metrics"
	"github.com/certen/batch-submitter/pkg/orchestrator"
	"github.com/certen/batch-submitter/pkg/prover"
	"github.com/certen/batch-submitter/pkg/resilience"
	"github.com/certen/batch-submitter/pkg/storage"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", "", "path to the submitter's YAML config file")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("--config <path> is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[Submitter] ", log.LstdFlags)
	logger.Printf("starting with da.mode=%s fees.policy=%s", cfg.DA.Mode, cfg.Fees.Policy)

	store, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer store.Close()

	var proofProvider prover.Provider
	if cfg.Prover.URL != "" {
		proofProvider = prover.NewHTTPProver(cfg.Prover.URL)
	} else {
		proofProvider = prover.NewMockProver(0)
		logger.Println("prover.url not set: using in-process mock prover")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l1Client, err := l1.NewClient(ctx, cfg.Network.RPCURL, cfg.Network.ChainID)
	if err != nil {
		return fmt.Errorf("failed to connect to L1: %w", err)
	}
	defer l1Client.Close()

	submitter, err := l1.NewSubmitter(l1Client, l1.SubmitterConfig{
		PrivateKeyHex:  cfg.SubmitterPrivateKey,
		Policy:         l1.FeePolicy(cfg.Fees.Policy),
		MaxBlobFeeGwei: cfg.Fees.MaxBlobFeeGwei,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize submitter: %w", err)
	}
	logger.Printf("submitter address: %s", submitter.Address())

	bridge := gethcommon.HexToAddress(cfg.Contracts.Bridge)

	archiver := da.NewArchiver(cfg.DA.ArchiverURL)
	strategies, err := buildStrategies(l1Client, submitter, bridge, archiver)
	if err != nil {
		return fmt.Errorf("failed to build DA strategies: %w", err)
	}

	reg := metrics.New()

	oCfg := orchestrator.DefaultConfig()
	oCfg.Store = store
	oCfg.Prover = proofProvider
	oCfg.Strategies = strategies
	oCfg.Metrics = reg
	oCfg.RequiredConfirmations = cfg.Resilience.Confirmations
	oCfg.TickInterval = time.Duration(cfg.Orchestrator.TickMs) * time.Millisecond
	oCfg.MaxConcurrency = int64(cfg.Orchestrator.MaxConcurrency)
	oCfg.RetryPolicy = resilience.Policy{
		Base:        resilience.DefaultPolicy().Base,
		MaxBackoff:  resilience.DefaultPolicy().MaxBackoff,
		MaxAttempts: cfg.Resilience.MaxRetries,
	}
	breakerCfg := resilience.DefaultBreakerConfig()
	breakerCfg.Threshold = int(cfg.Resilience.CircuitBreakerThreshold)
	oCfg.Breakers = map[string]*resilience.Breaker{
		"prover": resilience.NewBreaker(breakerCfg),
		"l1":     resilience.NewBreaker(breakerCfg),
	}

	o := orchestrator.New(oCfg)
	o.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutdown signal received, draining in-flight work")
	cancel()
	o.Stop()
	logger.Println("stopped cleanly")

	return nil
}

// openStore selects the storage backend by DATABASE_URL's scheme, the
// way the reference validator's database layer is configured by DSN
// rather than by a separate "backend" flag.
func openStore(databaseURL string) (storage.Store, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		return storage.NewSQLiteStore(storage.DefaultSQLiteConfig(path))
	case "postgres", "postgresql":
		return storage.NewPostgresStore(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme %q (want sqlite:// or postgres://)", u.Scheme)
	}
}

// buildStrategies constructs the DA strategy for every mode this
// binary knows about, so the orchestrator can look one up per batch
// regardless of which mode the operator currently configures — a
// batch discovered under a prior config still resolves correctly.
// archiver is nil when da.archiver_url is unset; NewBlobStrategy treats
// a nil WithBlobArchiver value as "archival disabled".
func buildStrategies(client *l1.Client, submitter *l1.Submitter, bridge gethcommon.Address, archiver *da.Archiver) (map[batch.DAMode]da.Strategy, error) {
	calldata, err := da.NewCalldataStrategy(client, submitter, bridge)
	if err != nil {
		return nil, fmt.Errorf("calldata strategy: %w", err)
	}
	blob, err := da.NewBlobStrategy(client, submitter, bridge, da.WithBlobArchiver(archiver))
	if err != nil {
		return nil, fmt.Errorf("blob strategy: %w", err)
	}
	return map[batch.DAMode]da.Strategy{
		batch.Calldata: calldata,
		batch.Blob:     blob,
	}, nil
}
