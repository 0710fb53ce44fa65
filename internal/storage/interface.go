package storage

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// Interface defines the contract for trade journal persistence.
//
// Implementations must be safe for concurrent use - callers can assume all methods
// are goroutine-safe and can safely call these methods from multiple goroutines.
//
// Returned trades are copies; mutating them never changes stored data.
type Interface interface {
	// Trade management
	AddTrade(trade models.Trade) (*models.Trade, error)
	GetTrade(id string) (*models.Trade, error)
	ListTrades(filter TradeFilter) []models.Trade
	CloseTrade(id string, exitPrices []float64, reason string) (*models.Trade, error)
	DeleteTrade(id string) error

	// Analytics
	GetStatistics() *Statistics

	// Data persistence
	Save() error
	Load() error
	Export(w io.Writer) error
	Import(r io.Reader, replace bool) (int, error)
}

// TradeFilter narrows ListTrades. Empty fields match everything.
type TradeFilter struct {
	Symbol   string
	Strategy string
	State    models.TradeState
}

func (f TradeFilter) matches(t *models.Trade) bool {
	if f.Symbol != "" && !equalFold(f.Symbol, t.Symbol) {
		return false
	}
	if f.Strategy != "" && !equalFold(f.Strategy, t.Strategy) {
		return false
	}
	if f.State != "" && f.State != t.State {
		return false
	}
	return true
}

// NewStorage creates a new storage implementation (currently JSON-based)
func NewStorage(filepath string, logger *logrus.Logger) (Interface, error) {
	return NewJSONStorage(filepath, logger)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)
