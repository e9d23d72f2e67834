package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TokenAccountRentExemptLamports is the minimum balance for a 165-byte SPL
// token account to be rent exempt. This is the default for the deposit
// estimate; the authoritative figure is whatever the network returns as each
// account actually closes. Override with RENT_EXEMPT_DEPOSIT_LAMPORTS if the
// network's rent parameters drift.
const TokenAccountRentExemptLamports = 2_039_280

// MaxBatchSize bounds how many close instructions fit in one transaction.
// A close instruction carries three account metas plus the program id; past
// roughly 27 instructions the serialized transaction exceeds the 1232-byte
// packet limit.
const MaxBatchSize = 27

// Defaults used by Load when the corresponding environment variable is
// unset. CLI flags reference these for their help text, so the single source
// of each default lives here.
const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	DefaultCommitment = "finalized"
	DefaultLogLevel   = "info"
	DefaultBatchSize  = 10

	DefaultConfirmTimeout      = 90 * time.Second
	DefaultConfirmPollInterval = 3 * time.Second
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Logging configuration
	LogLevel string

	// Solana configuration
	SolanaRPCURL string
	Commitment   string // "finalized" or "confirmed"

	// Reclamation configuration
	RentExemptDepositLamports uint64
	BatchSize                 int
	ConfirmTimeout            time.Duration
	ConfirmPollInterval       time.Duration

	// Optional collaborators; empty means disabled
	DatabaseURL string
	NATSURL     string
}

// Load reads configuration from environment variables, falling back to the
// defaults above, and validates the result. Command-line flags layer on top
// of the loaded configuration; Load is the only place environment variables
// are read.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", DefaultLogLevel)
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultRPCURL)
	cfg.Commitment = getEnvOrDefault("COMMITMENT", DefaultCommitment)

	rent, err := parseUint("RENT_EXEMPT_DEPOSIT_LAMPORTS", TokenAccountRentExemptLamports)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RentExemptDepositLamports = rent
	}

	batchSize, err := parseInt("BATCH_SIZE", DefaultBatchSize)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BatchSize = batchSize
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", DefaultConfirmTimeout)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", DefaultConfirmPollInterval)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	// Optional collaborators
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.Commitment != "finalized" && c.Commitment != "confirmed" {
		errs = append(errs, fmt.Errorf("Commitment must be %q or %q, got %q", "finalized", "confirmed", c.Commitment))
	}

	if c.RentExemptDepositLamports == 0 {
		errs = append(errs, fmt.Errorf("RentExemptDepositLamports must be positive"))
	}

	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Errorf("BatchSize must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval (%v) cannot be greater than ConfirmTimeout (%v)",
			c.ConfirmPollInterval, c.ConfirmTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}
