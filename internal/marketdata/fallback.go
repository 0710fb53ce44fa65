package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// RetryConfig bounds the retries spent on one source before falling back.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries a source twice starting at 200ms.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// FallbackProvider asks each source in order and returns the first quote.
// Transient errors are retried with jittered backoff before moving on.
type FallbackProvider struct {
	logger  *logrus.Logger
	sources []Provider
	config  RetryConfig
}

// NewFallbackProvider creates a provider over sources in priority order.
func NewFallbackProvider(logger *logrus.Logger, config RetryConfig, sources ...Provider) *FallbackProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FallbackProvider{logger: logger, sources: sources, config: config}
}

// Name implements Provider.
func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// GetQuote implements Provider.
func (f *FallbackProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if len(f.sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrAllSourcesFailed)
	}

	var lastErr error
	for _, src := range f.sources {
		q, err := f.fromSource(ctx, src, symbol)
		if err == nil {
			if q.Source == "" {
				q.Source = src.Name()
			}
			return q, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		}
		lastErr = err
		f.logger.WithError(err).WithFields(logrus.Fields{
			"source": src.Name(),
			"symbol": symbol,
		}).Warn("Quote source failed, trying next")
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrAllSourcesFailed, symbol, lastErr)
}

func (f *FallbackProvider) fromSource(ctx context.Context, src Provider, symbol string) (*Quote, error) {
	backoff := f.config.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := src.GetQuote(ctx, symbol)
		if err == nil && q == nil {
			err = fmt.Errorf("%w: %s returned no quote for %s", ErrNoQuote, src.Name(), symbol)
		}
		if err == nil {
			return q, nil
		}
		lastErr = err
		if !isTransientError(err) || attempt == f.config.MaxRetries {
			break
		}
		f.logger.WithError(err).WithField("source", src.Name()).
			Debugf("Transient error, retrying in %v", backoff)
		select {
		case <-time.After(backoff):
			backoff = f.nextBackoff(backoff)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (f *FallbackProvider) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if f.config.MaxBackoff > 0 && backoff > f.config.MaxBackoff {
		backoff = f.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			f.logger.WithError(err).Warn("Failed to generate jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

// isTransientError reports whether retrying the same source may succeed.
// An open breaker and a missing symbol are not retried.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrNoQuote) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"network",
		"dns",
		"tcp",
		"eof",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
