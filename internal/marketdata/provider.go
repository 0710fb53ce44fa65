// Package marketdata fetches underlying quotes and turns them into the
// market snapshots the pricing core consumes.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

var (
	// ErrNoQuote is returned when a source has no quote for the symbol
	ErrNoQuote = errors.New("no quote for symbol")
	// ErrAllSourcesFailed is returned when every configured source failed
	ErrAllSourcesFailed = errors.New("all market data sources failed")
)

// APIError is a non-success HTTP response from a quote source.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Provider is a source of underlying quotes.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Quote is the latest trade and top of book for an underlying.
type Quote struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Source    string    `json:"source"`
	Last      float64   `json:"last"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    int64     `json:"volume"`
	// ImpliedVolatility is an annualized estimate; zero when the source has none.
	ImpliedVolatility float64 `json:"implied_volatility,omitempty"`
}

// Price returns the last trade, falling back to the bid/ask midpoint.
func (q *Quote) Price() float64 {
	if q.Last > 0 {
		return q.Last
	}
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return 0
}

// Snapshot converts a quote into a market snapshot priced at riskFreeRate.
// A quote without an implied volatility uses defaultVolatility.
func Snapshot(q *Quote, riskFreeRate, defaultVolatility float64) (models.MarketSnapshot, error) {
	if q == nil {
		return models.MarketSnapshot{}, ErrNoQuote
	}
	iv := q.ImpliedVolatility
	if iv <= 0 {
		iv = defaultVolatility
	}
	snap := models.MarketSnapshot{
		CurrentPrice:      q.Price(),
		ImpliedVolatility: iv,
		RiskFreeRate:      models.Float64(riskFreeRate),
	}.WithDefaults()
	if err := snap.Validate(); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("quote %s from %s: %w", q.Symbol, q.Source, err)
	}
	return snap, nil
}
