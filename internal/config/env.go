package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	// Required
	TelegramBotToken string

	// Optional (with defaults)
	Port          int           // default: 3000
	SolanaRPCURL  string        // default: public mainnet
	Commitment    string        // default: "confirmed"
	SweepInterval time.Duration // default: 60s
	LogLevel      string

	// Optional, default empty. An empty pair leaves the datastore client
	// constructed but non-functional: every call reports unavailability.
	SupabaseURL string
	SupabaseKey string
}

// allowedCommitments is kept small and explicit to avoid surprises.
var allowedCommitments = map[string]struct{}{
	"processed": {},
	"confirmed": {},
	"finalized": {},
}

// Load reads environment variables, applies defaults, validates,
// and returns a Config instance. It attempts to load .env if present.
func Load() (Config, error) {
	// Load .env if it exists; ignore if missing.
	_ = godotenv.Load()

	var cfg Config
	var errs []string

	// Required: TELEGRAM_BOT_TOKEN
	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if cfg.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required (get it from @BotFather)")
	}

	// Optional: PORT (default: 3000)
	portStr := strings.TrimSpace(os.Getenv("PORT"))
	if portStr == "" {
		cfg.Port = 3000
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number, got %q", portStr))
		} else {
			cfg.Port = port
		}
	}

	// Optional: SOLANA_RPC_URL (default: public mainnet)
	cfg.SolanaRPCURL = strings.TrimSpace(os.Getenv("SOLANA_RPC_URL"))
	if cfg.SolanaRPCURL == "" {
		cfg.SolanaRPCURL = "https://api.mainnet-beta.solana.com"
	}

	// Optional: COMMITMENT (default: confirmed; normalize to lowercase)
	commitment := strings.TrimSpace(os.Getenv("COMMITMENT"))
	if commitment == "" {
		commitment = "confirmed"
	}
	commitment = strings.ToLower(commitment)
	if _, ok := allowedCommitments[commitment]; !ok {
		errs = append(errs, fmt.Sprintf("COMMITMENT must be one of processed|confirmed|finalized, got %q", commitment))
	} else {
		cfg.Commitment = commitment
	}

	// Optional: SWEEP_INTERVAL (default: 60s)
	sweepStr := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL"))
	if sweepStr == "" {
		cfg.SweepInterval = 60 * time.Second
	} else {
		d, err := time.ParseDuration(sweepStr)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("SWEEP_INTERVAL must be a positive duration (e.g. 60s), got %q", sweepStr))
		} else {
			cfg.SweepInterval = d
		}
	}

	// Optional: SUPABASE_URL + SUPABASE_ANON_KEY (default: empty)
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")
	cfg.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))
	if cfg.SupabaseURL != "" && !strings.HasPrefix(strings.ToLower(cfg.SupabaseURL), "https://") {
		errs = append(errs, fmt.Sprintf("SUPABASE_URL must start with https://, got %q", cfg.SupabaseURL))
	}

	// Optional: LOG_LEVEL (default: info)
	logLevel := strings.TrimSpace(strings.ToLower(os.Getenv("LOG_LEVEL")))
	switch logLevel {
	case "", "info", "debug", "warn", "error":
		// OK (empty becomes "info")
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of debug|info|warn|error, got %q", logLevel))
	}
	if logLevel == "" {
		logLevel = "info"
	}
	cfg.LogLevel = logLevel

	if len(errs) > 0 {
		return Config{}, errors.New("config validation error:\n  - " + strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// MustLoad is a convenience for main(): exit fast with a readable error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		// Print a clean error (no stack trace) so non-Go users can fix env quickly.
		fmt.Fprintf(os.Stderr, "\nFATAL: %v\n\n", err)
		os.Exit(1)
	}
	return cfg
}

// RedactedSummary returns a safe human-readable snapshot of the config.
// Useful to log at startup for quick debugging without leaking secrets.
func (c Config) RedactedSummary() string {
	return fmt.Sprintf(
		"config{ port=%d, solana_rpc=%s, commitment=%s, sweep_interval=%s, supabase_url=%s, supabase_key=%s, telegram_bot_token=%s, log_level=%s }",
		c.Port,
		c.SolanaRPCURL, // Public RPCs don't need redaction
		c.Commitment,
		c.SweepInterval,
		emptyOr(c.SupabaseURL),
		redactToken(c.SupabaseKey),
		redactToken(c.TelegramBotToken),
		c.LogLevel,
	)
}

func redactToken(tok string) string {
	if len(tok) > 6 {
		return tok[:6] + "...(redacted)"
	}
	if tok == "" {
		return "(empty)"
	}
	return "***"
}

func emptyOr(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
