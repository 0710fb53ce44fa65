package marketdata

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/config"
)

// FromConfig builds the configured sources, each behind its own circuit
// breaker, and chains them in priority order.
func FromConfig(md config.MarketDataConfig, logger *logrus.Logger) (*FallbackProvider, error) {
	if len(md.Sources) == 0 {
		return nil, fmt.Errorf("no market data sources configured")
	}

	interval, timeout := md.CircuitBreaker.Durations()
	settings := CircuitBreakerSettings{
		MaxRequests:  md.CircuitBreaker.MaxRequests,
		Interval:     interval,
		Timeout:      timeout,
		MinRequests:  md.CircuitBreaker.MinRequests,
		FailureRatio: md.CircuitBreaker.FailureRatio,
	}

	sources := make([]Provider, 0, len(md.Sources))
	for _, src := range md.Sources {
		var p Provider
		switch src.Type {
		case "mock":
			p = NewMockProvider(md.Mock.BasePrice, md.Mock.Volatility)
		case "http":
			p = NewHTTPProvider(src.Name, src.BaseURL, src.APIKey, src.SourceTimeout(), logger)
		default:
			return nil, fmt.Errorf("source %q: unknown type %q", src.Name, src.Type)
		}
		sources = append(sources, NewCircuitBreakerProvider(p, settings, logger))
	}

	initial, maxBackoff := md.Retry.Backoffs()
	return NewFallbackProvider(logger, RetryConfig{
		MaxRetries:     md.Retry.MaxRetries,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
	}, sources...), nil
}
