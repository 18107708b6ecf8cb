// Copyright 2025 Certen Protocol
//
// Config loads the submitter's YAML configuration file and overlays
// the handful of values that must come from the environment rather
// than a file on disk (the signing key, the database DSN, log level).

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Network holds L1 connection settings.
type Network struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID uint64 `yaml:"chain_id"`
}

// Contracts holds on-chain addresses.
type Contracts struct {
	Bridge string `yaml:"bridge"`
}

// DA holds data-availability strategy settings.
type DA struct {
	Mode        string `yaml:"mode"`
	BlobBinding string `yaml:"blob_binding"`
	BlobIndex   uint8  `yaml:"blob_index"`
	ArchiverURL string `yaml:"archiver_url"`
}

// Prover holds proof-provider settings.
type Prover struct {
	URL string `yaml:"url"`
}

// Resilience holds retry and circuit breaker tuning.
type Resilience struct {
	MaxRetries              uint32 `yaml:"max_retries"`
	CircuitBreakerThreshold uint32 `yaml:"circuit_breaker_threshold"`
	Confirmations           uint32 `yaml:"confirmations"`
}

// Orchestrator holds main-loop tuning.
type Orchestrator struct {
	TickMs         uint32 `yaml:"tick_ms"`
	MaxConcurrency uint32 `yaml:"max_concurrency"`
}

// Fees holds gas/blob fee policy settings.
type Fees struct {
	Policy         string `yaml:"policy"`
	MaxBlobFeeGwei uint64 `yaml:"max_blob_fee_gwei"`
}

// Config is the fully-resolved submitter configuration: file-sourced
// settings plus environment overlays.
type Config struct {
	Network      Network      `yaml:"network"`
	Contracts    Contracts    `yaml:"contracts"`
	DA           DA           `yaml:"da"`
	Prover       Prover       `yaml:"prover"`
	Resilience   Resilience   `yaml:"resilience"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Fees         Fees         `yaml:"fees"`

	// Environment-sourced, never present in the YAML file.
	SubmitterPrivateKey string
	DatabaseURL         string
	LogLevel            string
}

// Load reads path, applies defaults, overlays environment variables,
// and returns the resolved Config. Call Validate afterward.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SubmitterPrivateKey = getEnv("SUBMITTER_PRIVATE_KEY", "")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.LogLevel = getEnv("SUBMITTER_LOG_LEVEL", "info")

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Resilience: Resilience{
			MaxRetries:              5,
			CircuitBreakerThreshold: 5,
			Confirmations:           1,
		},
		Orchestrator: Orchestrator{
			TickMs:         5000,
			MaxConcurrency: 8,
		},
		Fees: Fees{
			Policy: "standard",
		},
		DA: DA{
			Mode: "calldata",
		},
	}
}

// Validate collects every configuration problem into a single joined
// error, the way the teacher's Config.Validate does, so an operator
// sees all missing fields in one run instead of one-at-a-time.
func (c *Config) Validate() error {
	var problems []string

	if c.Network.RPCURL == "" {
		problems = append(problems, "network.rpc_url is required")
	}
	if c.Network.ChainID == 0 {
		problems = append(problems, "network.chain_id is required")
	}
	if c.Contracts.Bridge == "" {
		problems = append(problems, "contracts.bridge is required")
	}
	switch c.DA.Mode {
	case "calldata", "blob":
	default:
		problems = append(problems, "da.mode must be \"calldata\" or \"blob\"")
	}
	switch c.Fees.Policy {
	case "standard", "aggressive", "fixed":
	default:
		problems = append(problems, "fees.policy must be \"standard\", \"aggressive\" or \"fixed\"")
	}
	if c.SubmitterPrivateKey == "" {
		problems = append(problems, "SUBMITTER_PRIVATE_KEY environment variable is required")
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL environment variable is required")
	}
	if c.Orchestrator.MaxConcurrency == 0 {
		problems = append(problems, "orchestrator.max_concurrency must be greater than zero")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
