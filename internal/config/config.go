// Package config loads the job board client configuration from a YAML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/jobboard/internal/enrichment"
	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "config/jobboard.yaml"

// Config is the full client configuration.
type Config struct {
	Ledger      LedgerConfig      `yaml:"ledger"`
	Board       BoardConfig       `yaml:"board"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Credentials CredentialsConfig `yaml:"credentials"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

// LedgerConfig configures the ledger RPC client.
type LedgerConfig struct {
	RPCURL            string        `yaml:"rpc_url" env:"JOBBOARD_RPC_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"JOBBOARD_RPC_TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"JOBBOARD_RPC_RPS"`
	Burst             int           `yaml:"burst" env:"JOBBOARD_RPC_BURST"`
	Concurrency       int           `yaml:"concurrency" env:"JOBBOARD_CONCURRENCY"`
}

// BoardConfig names the deployed contract objects.
type BoardConfig struct {
	PackageID          string `yaml:"package_id" env:"JOBBOARD_PACKAGE_ID"`
	BoardID            string `yaml:"board_id" env:"JOBBOARD_BOARD_ID"`
	UserRegistryID     string `yaml:"user_registry_id" env:"JOBBOARD_USER_REGISTRY_ID"`
	EmployerRegistryID string `yaml:"employer_registry_id" env:"JOBBOARD_EMPLOYER_REGISTRY_ID"`
	ClockID            string `yaml:"clock_id" env:"JOBBOARD_CLOCK_ID"`
}

// EnrichmentConfig configures the off-chain metadata API. Empty BaseURL
// disables it.
type EnrichmentConfig struct {
	BaseURL      string `yaml:"base_url" env:"JOBBOARD_ENRICHMENT_URL"`
	APIKey       string `yaml:"api_key" env:"JOBBOARD_ENRICHMENT_API_KEY"`
	EnvelopePath string `yaml:"envelope_path" env:"JOBBOARD_ENRICHMENT_ENVELOPE_PATH"`
}

// CredentialsConfig configures the session store. Empty RedisAddr keeps
// sessions in memory.
type CredentialsConfig struct {
	RedisAddr     string        `yaml:"redis_addr" env:"JOBBOARD_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"JOBBOARD_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"JOBBOARD_REDIS_DB"`
	KeyPrefix     string        `yaml:"key_prefix" env:"JOBBOARD_SESSION_PREFIX"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"JOBBOARD_SESSION_TTL"`
	Salt          string        `yaml:"salt" env:"JOBBOARD_ADDRESS_SALT"`
}

// HTTPConfig configures the gateway.
type HTTPConfig struct {
	Addr              string  `yaml:"addr" env:"JOBBOARD_HTTP_ADDR"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"JOBBOARD_HTTP_RPS"`
	Burst             int     `yaml:"burst" env:"JOBBOARD_HTTP_BURST"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"JOBBOARD_LOG_LEVEL"`
	Format string `yaml:"format" env:"JOBBOARD_LOG_FORMAT"`
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// overlays the environment, applies defaults and validates.
func Load(path string) (*Config, error) {
	var data []byte
	switch {
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = b
	default:
		b, err := os.ReadFile(DefaultPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse is Load for an in-memory YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 30 * time.Second
	}
	if c.Ledger.Concurrency == 0 {
		c.Ledger.Concurrency = jobboard.DefaultConcurrency
	}
	if c.Board.ClockID == "" {
		c.Board.ClockID = ledger.ClockObjectID
	}
	if c.Enrichment.EnvelopePath == "" {
		c.Enrichment.EnvelopePath = enrichment.DefaultEnvelopePath
	}
	if c.Credentials.KeyPrefix == "" {
		c.Credentials.KeyPrefix = "jobboard:"
	}
	if c.Credentials.SessionTTL == 0 {
		c.Credentials.SessionTTL = 24 * time.Hour
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestsPerSecond == 0 {
		c.HTTP.RequestsPerSecond = 20
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Ledger.RPCURL == "" {
		problems = append(problems, "ledger.rpc_url is required")
	}
	if c.Ledger.Concurrency < 0 {
		problems = append(problems, "ledger.concurrency must not be negative")
	}
	if c.Ledger.RequestsPerSecond < 0 {
		problems = append(problems, "ledger.requests_per_second must not be negative")
	}

	for _, id := range []struct {
		key, value string
	}{
		{"board.package_id", c.Board.PackageID},
		{"board.board_id", c.Board.BoardID},
		{"board.user_registry_id", c.Board.UserRegistryID},
		{"board.employer_registry_id", c.Board.EmployerRegistryID},
		{"board.clock_id", c.Board.ClockID},
	} {
		if id.value == "" {
			problems = append(problems, id.key+" is required")
			continue
		}
		if _, err := ledger.NormalizeAddress(id.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", id.key, err))
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Logger builds the root logger for component.
func (c *Config) Logger(component string) *logger.Logger {
	return logger.New(component, logger.Config{Level: c.Log.Level, Format: c.Log.Format})
}

// LedgerClient returns the ledger client settings.
func (c *Config) LedgerClient(log *logger.Logger) ledger.Config {
	return ledger.Config{
		RPCURL:            c.Ledger.RPCURL,
		Timeout:           c.Ledger.Timeout,
		RequestsPerSecond: c.Ledger.RequestsPerSecond,
		Burst:             c.Ledger.Burst,
		Logger:            log,
	}
}

// Service returns the query facade settings.
func (c *Config) Service(log *logger.Logger) jobboard.Config {
	return jobboard.Config{
		PackageID:          c.Board.PackageID,
		BoardID:            c.Board.BoardID,
		UserRegistryID:     c.Board.UserRegistryID,
		EmployerRegistryID: c.Board.EmployerRegistryID,
		Concurrency:        c.Ledger.Concurrency,
		Logger:             log,
	}
}

// Builder returns the transaction builder settings.
func (c *Config) Builder() jobboard.BuilderConfig {
	return jobboard.BuilderConfig{
		PackageID:          c.Board.PackageID,
		BoardID:            c.Board.BoardID,
		UserRegistryID:     c.Board.UserRegistryID,
		EmployerRegistryID: c.Board.EmployerRegistryID,
		ClockID:            c.Board.ClockID,
	}
}

// EnrichmentClient returns the enrichment client settings, or false when
// enrichment is disabled.
func (c *Config) EnrichmentClient(log *logger.Logger) (enrichment.Config, bool) {
	if c.Enrichment.BaseURL == "" {
		return enrichment.Config{}, false
	}
	return enrichment.Config{
		BaseURL:      c.Enrichment.BaseURL,
		APIKey:       c.Enrichment.APIKey,
		EnvelopePath: c.Enrichment.EnvelopePath,
		Timeout:      c.Ledger.Timeout,
		Logger:       log,
	}, true
}
