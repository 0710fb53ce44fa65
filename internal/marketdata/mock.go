package marketdata

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"
)

// MockProvider synthesizes quotes with a random walk per symbol. It stands
// in for a real feed in development and tests.
type MockProvider struct {
	mu        sync.Mutex
	prices    map[string]float64
	basePrice float64
	baseIV    float64
}

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// secureInt63n generates a cryptographically secure random int64 between 0 and n-1
func secureInt63n(n int64) int64 {
	r, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return n / 2
	}
	return r.Int64()
}

// NewMockProvider starts every symbol near basePrice with volatility near baseIV.
func NewMockProvider(basePrice, baseIV float64) *MockProvider {
	if basePrice <= 0 {
		basePrice = 450
	}
	if baseIV <= 0 {
		baseIV = 0.2
	}
	return &MockProvider{
		prices:    make(map[string]float64),
		basePrice: basePrice,
		baseIV:    baseIV,
	}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// GetQuote moves the symbol's price by up to $1 and returns a quote with a
// two cent spread.
func (m *MockProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNoQuote)
	}

	m.mu.Lock()
	price, ok := m.prices[symbol]
	if !ok {
		price = m.basePrice * (0.98 + secureFloat64()*0.04)
	}
	price = math.Max(0.01, price+(secureFloat64()-0.5)*2)
	m.prices[symbol] = price
	m.mu.Unlock()

	spread := 0.02
	iv := m.baseIV * (0.9 + secureFloat64()*0.2)
	return &Quote{
		Timestamp:         time.Now(),
		Symbol:            symbol,
		Source:            m.Name(),
		Last:              price,
		Bid:               math.Max(0, price-spread/2),
		Ask:               price + spread/2,
		Volume:            secureInt63n(100000000),
		ImpliedVolatility: iv,
	}, nil
}

// SetPrice pins the next walk step of symbol to start from price.
func (m *MockProvider) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[strings.ToUpper(symbol)] = price
}
