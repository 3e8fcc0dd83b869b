package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL     string
	SolanaNetwork    string
	SolanaCommitment string

	// Program interface description; the embedded IDL is used when empty.
	IDLPath string

	// NATS configuration; session events are not published when empty.
	NATSURL string

	// How long an idle browser session keeps its wallet
	SessionTTL time.Duration
}

var (
	validNetworks    = []string{"mainnet", "devnet", "localnet"}
	validCommitments = []string{"processed", "confirmed", "finalized"}
	validLogLevels   = []string{"debug", "info", "warn", "error"}
)

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	if !oneOf(cfg.LogLevel, validLogLevels) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of %v, got %q", validLogLevels, cfg.LogLevel))
	}

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	if !oneOf(cfg.SolanaNetwork, validNetworks) {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be one of %v, got %q", validNetworks, cfg.SolanaNetwork))
	}

	cfg.SolanaCommitment = getEnvOrDefault("SOLANA_COMMITMENT", "confirmed")
	if !oneOf(cfg.SolanaCommitment, validCommitments) {
		errs = append(errs, fmt.Errorf("SOLANA_COMMITMENT must be one of %v, got %q", validCommitments, cfg.SolanaCommitment))
	}

	cfg.IDLPath = os.Getenv("IDL_PATH")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Timing configuration
	sessionTTL, err := parseDuration("SESSION_TTL", "24h")
	if err != nil {
		errs = append(errs, err)
	} else if sessionTTL < time.Minute {
		errs = append(errs, fmt.Errorf("SESSION_TTL (%v) must be at least 1m", sessionTTL))
	} else {
		cfg.SessionTTL = sessionTTL
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if !oneOf(c.SolanaNetwork, validNetworks) {
		errs = append(errs, fmt.Errorf("SolanaNetwork must be one of %v", validNetworks))
	}

	if !oneOf(c.SolanaCommitment, validCommitments) {
		errs = append(errs, fmt.Errorf("SolanaCommitment must be one of %v", validCommitments))
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Errorf("SessionTTL must be at least 1 minute"))
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
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
