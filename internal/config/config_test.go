package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TRADIER_API_KEY", "from-env")

	configPath := filepath.Join("..", "..", "config.yaml.example")
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected config to load successfully from example file, got error: %v", err)
	}
	if got := cfg.MarketData.Sources[0].APIKey; got != "from-env" {
		t.Errorf("Expected api_key to be expanded from the environment, got %q", got)
	}
	if len(cfg.MarketData.Sources) != 2 || cfg.MarketData.Sources[1].Type != "mock" {
		t.Errorf("Expected http then mock sources, got %+v", cfg.MarketData.Sources)
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent config file, got nil")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n  colour: blue\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("Expected parse error for unknown field, got %v", err)
	}
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	path := writeConfig(t, "environment:\n  log_level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected minimal config to load, got %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.GetRequestTimeout() != 60*time.Second {
		t.Errorf("Expected default request timeout 60s, got %v", cfg.GetRequestTimeout())
	}
	if cfg.Pricing.Rate() != 0.05 || cfg.Pricing.DefaultVolatility != 0.25 {
		t.Errorf("Unexpected pricing defaults: %+v", cfg.Pricing)
	}
	opts := cfg.AnalysisOptions()
	if opts.GridPoints != 101 || opts.ExpectedMoves != 3 {
		t.Errorf("Unexpected analysis defaults: %+v", opts)
	}
	if len(cfg.MarketData.Sources) != 1 || cfg.MarketData.Sources[0].Type != "mock" {
		t.Errorf("Expected a single mock source by default, got %+v", cfg.MarketData.Sources)
	}
	if cfg.MarketData.Symbol != "SPY" {
		t.Errorf("Expected default symbol SPY, got %s", cfg.MarketData.Symbol)
	}
	if cfg.Storage.Path != "journal.json" {
		t.Errorf("Expected default storage path, got %s", cfg.Storage.Path)
	}
}

func TestLoad_ExplicitZeroRate(t *testing.T) {
	path := writeConfig(t, "pricing:\n  risk_free_rate: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected zero rate config to load, got %v", err)
	}
	if cfg.Pricing.RiskFreeRate == nil || cfg.Pricing.Rate() != 0 {
		t.Errorf("Expected explicit zero rate to be kept, got %v", cfg.Pricing.Rate())
	}

	path = writeConfig(t, "pricing:\n  risk_free_rate: -0.005\n")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Expected negative rate config to load, got %v", err)
	}
	if cfg.Pricing.Rate() != -0.005 {
		t.Errorf("Expected negative rate to be kept, got %v", cfg.Pricing.Rate())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Environment.LogLevel = "loud" },
			wantErr: "environment.log_level",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "request timeout not a duration",
			mutate:  func(c *Config) { c.Server.RequestTimeout = "soon" },
			wantErr: "server.request_timeout",
		},
		{
			name:   "negative rate",
			mutate: func(c *Config) { c.Pricing.RiskFreeRate = models.Float64(-0.01) },
		},
		{
			name:    "rate above 100%",
			mutate:  func(c *Config) { c.Pricing.RiskFreeRate = models.Float64(1.5) },
			wantErr: "pricing.risk_free_rate",
		},
		{
			name:    "volatility too high",
			mutate:  func(c *Config) { c.Pricing.DefaultVolatility = 6 },
			wantErr: "pricing.default_volatility",
		},
		{
			name:    "single grid point",
			mutate:  func(c *Config) { c.Analysis.GridPoints = 1 },
			wantErr: "analysis.grid_points",
		},
		{
			name:    "negative expected moves",
			mutate:  func(c *Config) { c.Analysis.ExpectedMoves = -1 },
			wantErr: "analysis.expected_moves",
		},
		{
			name: "http source without url",
			mutate: func(c *Config) {
				c.MarketData.Sources = []SourceConfig{{Name: "feed", Type: "http", Timeout: "5s"}}
			},
			wantErr: "market_data.sources[0].base_url",
		},
		{
			name: "unknown source type",
			mutate: func(c *Config) {
				c.MarketData.Sources = []SourceConfig{{Name: "feed", Type: "ftp", Timeout: "5s"}}
			},
			wantErr: "market_data.sources[0].type",
		},
		{
			name: "duplicate source names",
			mutate: func(c *Config) {
				c.MarketData.Sources = []SourceConfig{
					{Name: "mock", Type: "mock", Timeout: "5s"},
					{Name: "mock", Type: "mock", Timeout: "5s"},
				}
			},
			wantErr: "market_data.sources[1].name",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.MarketData.Retry.MaxRetries = -1 },
			wantErr: "market_data.retry.max_retries",
		},
		{
			name:    "bad backoff",
			mutate:  func(c *Config) { c.MarketData.Retry.MaxBackoff = "later" },
			wantErr: "market_data.retry.max_backoff",
		},
		{
			name:    "failure ratio above one",
			mutate:  func(c *Config) { c.MarketData.CircuitBreaker.FailureRatio = 1.5 },
			wantErr: "market_data.circuit_breaker.failure_ratio",
		},
		{
			name:    "blank storage path",
			mutate:  func(c *Config) { c.Storage.Path = "   " },
			wantErr: "storage.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	initial, maxBackoff := cfg.MarketData.Retry.Backoffs()
	if initial != 200*time.Millisecond || maxBackoff != 2*time.Second {
		t.Errorf("Unexpected backoffs %v, %v", initial, maxBackoff)
	}

	interval, timeout := cfg.MarketData.CircuitBreaker.Durations()
	if interval != time.Minute || timeout != 30*time.Second {
		t.Errorf("Unexpected breaker durations %v, %v", interval, timeout)
	}

	if got := (SourceConfig{Timeout: "bogus"}).SourceTimeout(); got != 10*time.Second {
		t.Errorf("Expected fallback source timeout, got %v", got)
	}
}
