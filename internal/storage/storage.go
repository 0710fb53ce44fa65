package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// JSONStorage is a trade journal persisted as one JSON file. Every mutation
// is written through with an atomic temp file rename.
type JSONStorage struct {
	mu          sync.RWMutex
	logger      *logrus.Logger
	path        string
	journal     journal
	lastUpdated time.Time
}

// storageData is the on-disk layout.
type storageData struct {
	LastUpdated time.Time      `json:"last_updated"`
	Trades      []models.Trade `json:"trades"`
}

// NewJSONStorage opens the journal at path, loading it when the file exists.
func NewJSONStorage(path string, logger *logrus.Logger) (*JSONStorage, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &JSONStorage{logger: logger, path: path}

	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking storage file: %w", err)
	}

	return s, nil
}

// Load replaces the in-memory journal with the file contents.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path) // #nosec G304 -- path comes from trusted configuration
	if err != nil {
		return err
	}

	var stored storageData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	for i := range stored.Trades {
		if err := stored.Trades[i].Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrade, err)
		}
	}

	s.journal = journal{trades: stored.Trades}
	s.lastUpdated = stored.LastUpdated
	s.logger.WithFields(logrus.Fields{"path": s.path, "trades": len(stored.Trades)}).Debug("Journal loaded")
	return nil
}

// Save writes the journal to disk.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUnsafe()
}

// saveUnsafe writes the journal; the caller must hold the write lock.
func (s *JSONStorage) saveUnsafe() error {
	s.lastUpdated = time.Now()

	data, err := json.MarshalIndent(storageData{LastUpdated: s.lastUpdated, Trades: s.journal.trades}, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating storage directory: %w", err)
		}
	}

	// Write to temp file first
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpFile, s.path); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}
	return nil
}

// mutate runs fn under the write lock and persists the result. A failed save
// rolls the journal back so memory and disk stay in step.
func (s *JSONStorage) mutate(fn func(j *journal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := append([]models.Trade(nil), s.journal.trades...)
	if err := fn(&s.journal); err != nil {
		return err
	}
	if err := s.saveUnsafe(); err != nil {
		s.journal.trades = before
		return fmt.Errorf("saving journal: %w", err)
	}
	return nil
}

// AddTrade stores a new trade, assigning an ID when it has none.
func (s *JSONStorage) AddTrade(trade models.Trade) (*models.Trade, error) {
	var added *models.Trade
	err := s.mutate(func(j *journal) error {
		var err error
		added, err = j.add(trade, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"id":       added.ID,
		"symbol":   added.Symbol,
		"strategy": added.Strategy,
	}).Info("Trade added to journal")
	return added, nil
}

// GetTrade returns a copy of the trade with id.
func (s *JSONStorage) GetTrade(id string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.get(id)
}

// ListTrades returns copies of the trades matching filter in insertion order.
func (s *JSONStorage) ListTrades(filter TradeFilter) []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.list(filter)
}

// CloseTrade realizes the trade at the given per-leg exit prices.
func (s *JSONStorage) CloseTrade(id string, exitPrices []float64, reason string) (*models.Trade, error) {
	var closed *models.Trade
	err := s.mutate(func(j *journal) error {
		var err error
		closed, err = j.close(id, exitPrices, reason, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"id":           closed.ID,
		"realized_pnl": closed.RealizedPnL,
		"reason":       reason,
	}).Info("Trade closed")
	return closed, nil
}

// DeleteTrade removes a trade from the journal.
func (s *JSONStorage) DeleteTrade(id string) error {
	return s.mutate(func(j *journal) error { return j.remove(id) })
}

// GetStatistics summarizes closed trades.
func (s *JSONStorage) GetStatistics() *Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.statistics()
}

// Export writes every trade as a portable JSON document.
func (s *JSONStorage) Export(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.export(w, time.Now())
}

// Import loads trades from an Export document and persists them.
func (s *JSONStorage) Import(r io.Reader, replace bool) (int, error) {
	var n int
	err := s.mutate(func(j *journal) error {
		var err error
		n, err = j.importFrom(r, replace, time.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"trades": n, "replace": replace}).Info("Journal imported")
	return n, nil
}
