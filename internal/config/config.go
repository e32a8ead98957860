// Package config loads service configuration from the environment (optionally seeded
// from a .env file) and the ledger account mapping from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
)

// Config is the runtime configuration shared by cmd/api and cmd/ledgerctl.
type Config struct {
	PGDSN    string
	HTTPAddr string
	LogLevel string

	LocalCurrency finance.Currency
	// LedgerLockDate is yyyy-MM-dd or empty (no lock).
	LedgerLockDate string

	RateCacheTTL      time.Duration
	RateFallbackDays  int
	MatchWindowMonths int

	RateLimitRPS   float64
	RateLimitBurst int

	AccountsFile string
	Accounts     ledger.Accounts
}

// Load reads configuration. An explicit envPath must exist; otherwise a .env in the
// working directory is loaded when present. Real environment variables win over .env.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		PGDSN:          os.Getenv("ACCOUNTER_PG_DSN"),
		HTTPAddr:       getEnvOrDefault("ACCOUNTER_HTTP_ADDR", ":8080"),
		LogLevel:       getEnvOrDefault("ACCOUNTER_LOG_LEVEL", "info"),
		LocalCurrency:  finance.Currency(strings.ToUpper(getEnvOrDefault("ACCOUNTER_LOCAL_CURRENCY", string(finance.ILS)))),
		LedgerLockDate: strings.TrimSpace(os.Getenv("ACCOUNTER_LEDGER_LOCK_DATE")),
		AccountsFile:   os.Getenv("ACCOUNTER_ACCOUNTS_FILE"),
	}

	var err error
	if cfg.RateCacheTTL, err = parseDurationEnv("ACCOUNTER_RATE_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateFallbackDays, err = parseIntEnv("ACCOUNTER_RATE_FALLBACK_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MatchWindowMonths, err = parseIntEnv("ACCOUNTER_MATCH_WINDOW_MONTHS", 12); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = parseIntEnv("ACCOUNTER_RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = parseFloatEnv("ACCOUNTER_RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}

	if cfg.AccountsFile != "" {
		accounts, err := LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return nil, err
		}
		cfg.Accounts = accounts
	}
	return cfg, nil
}

// accountsFile is the on-disk layout of the account mapping.
type accountsFile struct {
	Ledger ledger.Accounts `yaml:"ledger"`
}

// LoadAccounts reads the ledger account mapping from a YAML file.
func LoadAccounts(path string) (ledger.Accounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Accounts{}, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return ParseAccounts(data)
}

// ParseAccounts decodes an account mapping document.
func ParseAccounts(data []byte) (ledger.Accounts, error) {
	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ledger.Accounts{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.Ledger, nil
}

// Validate checks cross-field constraints. requireDB is set by commands that need
// Postgres.
func (c *Config) Validate(requireDB bool) error {
	var problems []string
	if requireDB && c.PGDSN == "" {
		problems = append(problems, "ACCOUNTER_PG_DSN is required")
	}
	if len(c.LocalCurrency) < 3 {
		problems = append(problems, fmt.Sprintf("invalid local currency %q", c.LocalCurrency))
	}
	if err := ledger.ValidateLockDate(c.LedgerLockDate); err != nil {
		problems = append(problems, err.Error())
	}
	if c.RateFallbackDays < 0 {
		problems = append(problems, "ACCOUNTER_RATE_FALLBACK_DAYS must be >= 0")
	}
	if c.MatchWindowMonths <= 0 {
		problems = append(problems, "ACCOUNTER_MATCH_WINDOW_MONTHS must be > 0")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, "rate limit must be positive")
	}
	if missing := c.Accounts.Missing(); len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("ledger accounts not configured: %s", strings.Join(missing, ", ")))
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %s", key, value)
	}
	return parsed, nil
}
