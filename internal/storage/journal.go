package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// exportVersion is bumped when the export document changes shape.
const exportVersion = 1

// Statistics summarizes closed trades.
type Statistics struct {
	ByStrategy    map[string]StrategyStats `json:"by_strategy"`
	TotalTrades   int                      `json:"total_trades"`
	OpenTrades    int                      `json:"open_trades"`
	WinningTrades int                      `json:"winning_trades"`
	LosingTrades  int                      `json:"losing_trades"`
	WinRate       float64                  `json:"win_rate"`
	TotalPnL      float64                  `json:"total_pnl"`
	AverageWin    float64                  `json:"average_win"`
	AverageLoss   float64                  `json:"average_loss"`
	MaxDrawdown   float64                  `json:"max_drawdown"`
	CurrentStreak int                      `json:"current_streak"`
}

// StrategyStats is the closed trade summary of one strategy.
type StrategyStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	TotalPnL float64 `json:"total_pnl"`
}

// exportDocument is the portable journal format written by Export.
type exportDocument struct {
	ExportedAt time.Time      `json:"exported_at"`
	Version    int            `json:"version"`
	Trades     []models.Trade `json:"trades"`
}

// journal holds trades in insertion order. It does no locking; owners
// serialize access.
type journal struct {
	trades []models.Trade
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cloneTrade(t *models.Trade) *models.Trade {
	c := *t
	c.Legs = append([]models.StrategyLeg(nil), t.Legs...)
	return &c
}

func (j *journal) index(id string) int {
	for i := range j.trades {
		if j.trades[i].ID == id {
			return i
		}
	}
	return -1
}

func (j *journal) add(trade models.Trade, now time.Time) (*models.Trade, error) {
	t := cloneTrade(&trade)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if j.index(t.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
	}
	if t.State == "" {
		t.State = models.TradeOpen
	}
	if t.OpenedAt.IsZero() {
		t.OpenedAt = now
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrade, err)
	}
	j.trades = append(j.trades, *t)
	return cloneTrade(t), nil
}

func (j *journal) get(id string) (*models.Trade, error) {
	i := j.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return cloneTrade(&j.trades[i]), nil
}

func (j *journal) list(filter TradeFilter) []models.Trade {
	out := make([]models.Trade, 0, len(j.trades))
	for i := range j.trades {
		if filter.matches(&j.trades[i]) {
			out = append(out, *cloneTrade(&j.trades[i]))
		}
	}
	return out
}

// close realizes the P&L of every leg at its exit price.
func (j *journal) close(id string, exitPrices []float64, reason string, now time.Time) (*models.Trade, error) {
	i := j.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	t := cloneTrade(&j.trades[i])
	if t.State == models.TradeClosed {
		return nil, fmt.Errorf("%w: %s", ErrTradeClosed, id)
	}
	if len(exitPrices) != len(t.Legs) {
		return nil, fmt.Errorf("%w: trade %s has %d legs, got %d exit prices",
			ErrInvalidTrade, id, len(t.Legs), len(exitPrices))
	}

	realized := decimal.Zero
	for k, leg := range t.Legs {
		if exitPrices[k] < 0 {
			return nil, fmt.Errorf("%w: exit price for leg %d must be >= 0 (current: %v)",
				ErrInvalidTrade, k+1, exitPrices[k])
		}
		move := decimal.NewFromFloat(exitPrices[k]).Sub(decimal.NewFromFloat(leg.EntryPrice))
		units := decimal.NewFromInt(int64(leg.Quantity)).Mul(decimal.NewFromFloat(models.SharesPerContract))
		realized = realized.Add(move.Mul(units).Mul(decimal.NewFromFloat(leg.Action.Sign())))
	}

	t.State = models.TradeClosed
	t.ClosedAt = now
	if t.ClosedAt.Before(t.OpenedAt) {
		t.ClosedAt = t.OpenedAt
	}
	t.ExitReason = reason
	t.RealizedPnL = realized.Round(2).InexactFloat64()
	j.trades[i] = *t
	return cloneTrade(t), nil
}

func (j *journal) remove(id string) error {
	i := j.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	j.trades = append(j.trades[:i], j.trades[i+1:]...)
	return nil
}

// statistics recomputes the summary from scratch in close order.
func (j *journal) statistics() *Statistics {
	stats := &Statistics{ByStrategy: make(map[string]StrategyStats)}

	closed := make([]models.Trade, 0, len(j.trades))
	for _, t := range j.trades {
		if t.State == models.TradeClosed {
			closed = append(closed, t)
		} else {
			stats.OpenTrades++
		}
	}
	sort.SliceStable(closed, func(a, b int) bool { return closed[a].ClosedAt.Before(closed[b].ClosedAt) })

	total, wins, losses := decimal.Zero, decimal.Zero, decimal.Zero
	peak, drawdown := decimal.Zero, decimal.Zero
	for _, t := range closed {
		pnl := decimal.NewFromFloat(t.RealizedPnL)
		total = total.Add(pnl)
		stats.TotalTrades++

		byStrategy := stats.ByStrategy[t.Strategy]
		byStrategy.Trades++
		byStrategy.TotalPnL = decimal.NewFromFloat(byStrategy.TotalPnL).Add(pnl).InexactFloat64()

		if pnl.IsPositive() {
			stats.WinningTrades++
			byStrategy.Wins++
			wins = wins.Add(pnl)
			if stats.CurrentStreak >= 0 {
				stats.CurrentStreak++
			} else {
				stats.CurrentStreak = 1
			}
		} else {
			stats.LosingTrades++
			losses = losses.Add(pnl)
			if stats.CurrentStreak <= 0 {
				stats.CurrentStreak--
			} else {
				stats.CurrentStreak = -1
			}
		}
		stats.ByStrategy[t.Strategy] = byStrategy

		// drawdown is measured from the running peak of cumulative P&L
		if total.GreaterThan(peak) {
			peak = total
		}
		if dd := total.Sub(peak); dd.LessThan(drawdown) {
			drawdown = dd
		}
	}

	stats.TotalPnL = total.InexactFloat64()
	stats.MaxDrawdown = drawdown.InexactFloat64()
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	}
	if stats.WinningTrades > 0 {
		stats.AverageWin = wins.Div(decimal.NewFromInt(int64(stats.WinningTrades))).Round(2).InexactFloat64()
	}
	if stats.LosingTrades > 0 {
		stats.AverageLoss = losses.Div(decimal.NewFromInt(int64(stats.LosingTrades))).Round(2).InexactFloat64()
	}
	return stats
}

func (j *journal) export(w io.Writer, now time.Time) error {
	doc := exportDocument{ExportedAt: now, Version: exportVersion, Trades: j.list(TradeFilter{})}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// importFrom reads an export document. With replace, the journal is swapped
// for the imported trades; otherwise they are appended and an existing ID
// fails the whole import.
func (j *journal) importFrom(r io.Reader, replace bool, now time.Time) (int, error) {
	var doc exportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: decoding import: %w", ErrInvalidTrade, err)
	}
	if doc.Version != 0 && doc.Version > exportVersion {
		return 0, fmt.Errorf("%w: unsupported export version %d", ErrInvalidTrade, doc.Version)
	}

	staged := &journal{}
	if !replace {
		staged.trades = append(staged.trades, j.trades...)
	}
	for _, t := range doc.Trades {
		if _, err := staged.add(t, now); err != nil {
			return 0, err
		}
	}
	j.trades = staged.trades
	return len(doc.Trades), nil
}
