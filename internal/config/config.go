// Package config provides configuration management for the strategy server.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/models"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = "60s"
	defaultSymbol         = "SPY"
	defaultStoragePath    = "journal.json"
	defaultSourceTimeout  = "10s"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Port           int    `yaml:"port"`
	AuthToken      string `yaml:"auth_token"` // empty disables auth
	RequestTimeout string `yaml:"request_timeout"`
}

// PricingConfig supplies the model inputs a quote does not carry.
type PricingConfig struct {
	RiskFreeRate      *float64 `yaml:"risk_free_rate"` // nil when unset; 0 is a valid rate
	DefaultVolatility float64  `yaml:"default_volatility"`
}

// Rate returns the configured risk free rate, or the model default when unset.
func (p PricingConfig) Rate() float64 {
	if p.RiskFreeRate == nil {
		return models.DefaultRiskFreeRate
	}
	return *p.RiskFreeRate
}

// AnalysisConfig tunes the expiry scenario sweep.
type AnalysisConfig struct {
	GridPoints    int     `yaml:"grid_points"`
	ExpectedMoves float64 `yaml:"expected_moves"`
	DaysToExpiry  int     `yaml:"days_to_expiry"` // used when comparing strategies
}

// MarketDataConfig lists quote sources in priority order.
type MarketDataConfig struct {
	Symbol         string               `yaml:"symbol"`
	Sources        []SourceConfig       `yaml:"sources"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Mock           MockConfig           `yaml:"mock"`
}

// SourceConfig is one quote source.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // mock | http
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// RetryConfig bounds retries against one source.
type RetryConfig struct {
	MaxRetries     int    `yaml:"max_retries"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// CircuitBreakerConfig configures the per-source breaker.
type CircuitBreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	Interval     string  `yaml:"interval"`
	Timeout      string  `yaml:"timeout"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// MockConfig seeds the synthetic quote source.
type MockConfig struct {
	BasePrice  float64 `yaml:"base_price"`
	Volatility float64 `yaml:"volatility"`
}

// StorageConfig defines where the trade journal is kept.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Default returns a configuration that serves mock quotes with no auth.
func Default() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// Validate checks that all configuration values are valid and consistent.
// Unset values are filled with defaults first.
func (c *Config) Validate() error {
	c.normalize()

	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if d, err := time.ParseDuration(c.Server.RequestTimeout); err != nil || d <= 0 {
		return fmt.Errorf("server.request_timeout must be a positive duration")
	}

	if r := c.Pricing.Rate(); math.IsNaN(r) || r < -1 || r > 1 {
		return fmt.Errorf("pricing.risk_free_rate must be between -1 and 1")
	}
	if c.Pricing.DefaultVolatility <= 0 || c.Pricing.DefaultVolatility > models.MaxVolatility {
		return fmt.Errorf("pricing.default_volatility must be in (0, %.0f]", models.MaxVolatility)
	}

	if c.Analysis.GridPoints < 2 {
		return fmt.Errorf("analysis.grid_points must be >= 2")
	}
	if c.Analysis.ExpectedMoves <= 0 {
		return fmt.Errorf("analysis.expected_moves must be > 0")
	}
	if c.Analysis.DaysToExpiry < 0 {
		return fmt.Errorf("analysis.days_to_expiry must be >= 0")
	}

	if err := c.validateMarketData(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

func (c *Config) validateMarketData() error {
	md := &c.MarketData
	if len(md.Sources) == 0 {
		return fmt.Errorf("market_data.sources must list at least one source")
	}
	seen := make(map[string]bool, len(md.Sources))
	for i, src := range md.Sources {
		if src.Name == "" {
			return fmt.Errorf("market_data.sources[%d].name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("market_data.sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = true
		switch src.Type {
		case "mock":
		case "http":
			if src.BaseURL == "" {
				return fmt.Errorf("market_data.sources[%d].base_url is required for http sources", i)
			}
		default:
			return fmt.Errorf("market_data.sources[%d].type must be 'mock' or 'http'", i)
		}
		if _, err := time.ParseDuration(src.Timeout); err != nil {
			return fmt.Errorf("market_data.sources[%d].timeout invalid: %w", i, err)
		}
	}

	if md.Retry.MaxRetries < 0 {
		return fmt.Errorf("market_data.retry.max_retries must be >= 0")
	}
	if _, err := time.ParseDuration(md.Retry.InitialBackoff); err != nil {
		return fmt.Errorf("market_data.retry.initial_backoff invalid: %w", err)
	}
	if _, err := time.ParseDuration(md.Retry.MaxBackoff); err != nil {
		return fmt.Errorf("market_data.retry.max_backoff invalid: %w", err)
	}

	cb := md.CircuitBreaker
	if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
		return fmt.Errorf("market_data.circuit_breaker.failure_ratio must be in (0,1]")
	}
	if _, err := time.ParseDuration(cb.Interval); err != nil {
		return fmt.Errorf("market_data.circuit_breaker.interval invalid: %w", err)
	}
	if _, err := time.ParseDuration(cb.Timeout); err != nil {
		return fmt.Errorf("market_data.circuit_breaker.timeout invalid: %w", err)
	}
	return nil
}

// normalize sets default values for unset fields
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Pricing.RiskFreeRate == nil {
		c.Pricing.RiskFreeRate = models.Float64(models.DefaultRiskFreeRate)
	}
	if c.Pricing.DefaultVolatility == 0 {
		c.Pricing.DefaultVolatility = models.DefaultVolatility
	}
	if c.Analysis.GridPoints == 0 {
		c.Analysis.GridPoints = analysis.DefaultOptions.GridPoints
	}
	if c.Analysis.ExpectedMoves == 0 {
		c.Analysis.ExpectedMoves = analysis.DefaultOptions.ExpectedMoves
	}
	if c.Analysis.DaysToExpiry == 0 {
		c.Analysis.DaysToExpiry = 30
	}

	md := &c.MarketData
	if md.Symbol == "" {
		md.Symbol = defaultSymbol
	}
	if len(md.Sources) == 0 {
		md.Sources = []SourceConfig{{Name: "mock", Type: "mock"}}
	}
	for i := range md.Sources {
		if md.Sources[i].Timeout == "" {
			md.Sources[i].Timeout = defaultSourceTimeout
		}
	}
	if md.Retry.InitialBackoff == "" {
		md.Retry.InitialBackoff = "200ms"
	}
	if md.Retry.MaxBackoff == "" {
		md.Retry.MaxBackoff = "2s"
	}
	if md.CircuitBreaker.MaxRequests == 0 {
		md.CircuitBreaker.MaxRequests = 3
	}
	if md.CircuitBreaker.Interval == "" {
		md.CircuitBreaker.Interval = "60s"
	}
	if md.CircuitBreaker.Timeout == "" {
		md.CircuitBreaker.Timeout = "30s"
	}
	if md.CircuitBreaker.MinRequests == 0 {
		md.CircuitBreaker.MinRequests = 5
	}
	if md.CircuitBreaker.FailureRatio == 0 {
		md.CircuitBreaker.FailureRatio = 0.6
	}

	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
}

// GetRequestTimeout returns the per-request timeout, falling back to 60s.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AnalysisOptions returns the sweep settings for the aggregator.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{GridPoints: c.Analysis.GridPoints, ExpectedMoves: c.Analysis.ExpectedMoves}
}

// durationOr parses s, returning fallback when it is not a duration.
func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// SourceTimeout returns the HTTP timeout of a source.
func (s SourceConfig) SourceTimeout() time.Duration {
	return durationOr(s.Timeout, 10*time.Second)
}

// Backoffs returns the initial and maximum retry backoff.
func (r RetryConfig) Backoffs() (initial, maxBackoff time.Duration) {
	return durationOr(r.InitialBackoff, 200*time.Millisecond), durationOr(r.MaxBackoff, 2*time.Second)
}

// Durations returns the breaker's count reset interval and open timeout.
func (b CircuitBreakerConfig) Durations() (interval, timeout time.Duration) {
	return durationOr(b.Interval, 60*time.Second), durationOr(b.Timeout, 30*time.Second)
}
