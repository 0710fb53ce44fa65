package storage

import (
	"io"
	"sync"
	"time"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// MockStorage is an in-memory Interface for tests. SaveError and LoadError
// are returned by the corresponding methods when set.
type MockStorage struct {
	mu            sync.Mutex
	journal       journal
	SaveError     error
	LoadError     error
	saveCallCount int
	loadCallCount int
}

// NewMockStorage creates a new mock storage for testing
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)

// AddTrade implements Interface.
func (m *MockStorage) AddTrade(trade models.Trade) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.add(trade, time.Now())
}

// GetTrade implements Interface.
func (m *MockStorage) GetTrade(id string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.get(id)
}

// ListTrades implements Interface.
func (m *MockStorage) ListTrades(filter TradeFilter) []models.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.list(filter)
}

// CloseTrade implements Interface.
func (m *MockStorage) CloseTrade(id string, exitPrices []float64, reason string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.close(id, exitPrices, reason, time.Now())
}

// DeleteTrade implements Interface.
func (m *MockStorage) DeleteTrade(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.remove(id)
}

// GetStatistics implements Interface.
func (m *MockStorage) GetStatistics() *Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.statistics()
}

// Save implements Interface.
func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	return m.SaveError
}

// Load implements Interface.
func (m *MockStorage) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCallCount++
	return m.LoadError
}

// Export implements Interface.
func (m *MockStorage) Export(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.export(w, time.Now())
}

// Import implements Interface.
func (m *MockStorage) Import(r io.Reader, replace bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.importFrom(r, replace, time.Now())
}

// SaveCallCount returns how many times Save was called
func (m *MockStorage) SaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

// LoadCallCount returns how many times Load was called
func (m *MockStorage) LoadCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCallCount
}
