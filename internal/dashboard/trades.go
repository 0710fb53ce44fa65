package dashboard

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pnl"
	"github.com/eddiefleurent/strategy_lab/internal/storage"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
)

// addTradeRequest records explicit legs, or builds them from a strategy and
// params when Legs is empty.
type addTradeRequest struct {
	Symbol    string               `json:"symbol"`
	Strategy  string               `json:"strategy"`
	Params    strategy.Params      `json:"params"`
	Legs      []models.StrategyLeg `json:"legs,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	EntrySpot float64              `json:"entry_spot,omitempty"`
}

// closeTradeRequest closes at explicit per-leg exit prices. Without them the
// legs are closed at their model value against Spot, or a live quote.
type closeTradeRequest struct {
	ExitPrices []float64 `json:"exit_prices,omitempty"`
	Reason     string    `json:"reason"`
	Spot       float64   `json:"spot,omitempty"`
}

type markResponse struct {
	Trade    *models.Trade         `json:"trade"`
	Snapshot models.MarketSnapshot `json:"snapshot"`
	Report   analysis.Report       `json:"report"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TradeFilter{
		Symbol:   q.Get("symbol"),
		Strategy: q.Get("strategy"),
		State:    models.TradeState(strings.ToLower(q.Get("state"))),
	}
	if filter.State != "" && !filter.State.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown state %q", errBadRequest, filter.State))
		return
	}
	s.writeJSON(w, http.StatusOK, s.storage.ListTrades(filter))
}

func (s *Server) handleAddTrade(w http.ResponseWriter, r *http.Request) {
	var req addTradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	name := strings.TrimSpace(req.Strategy)
	legs := req.Legs
	if def, err := strategy.Lookup(name); err == nil {
		name = def.Name
		if len(legs) == 0 {
			if legs, err = def.GenerateLegs(req.Params); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
	} else if len(legs) == 0 {
		s.writeError(w, r, err)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	trade, err := s.storage.AddTrade(models.Trade{
		Symbol:    symbol,
		Strategy:  name,
		Legs:      legs,
		Notes:     req.Notes,
		EntrySpot: req.EntrySpot,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
		"strategy": trade.Strategy,
		"legs":     len(trade.Legs),
	}).Info("Trade recorded")
	s.writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.storage.GetTrade(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteTrade(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.WithField("trade_id", id).Info("Trade deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleMarkTrade prices an open trade against the current market. Leg
// expiries are shortened by the days elapsed since the trade was opened.
func (s *Server) handleMarkTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.storage.GetTrade(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snap, err := s.tradeSnapshot(r, trade, r.URL.Query().Get("spot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	legs := agedLegs(trade, time.Now())
	report, err := analysis.Aggregate(legs, snap, s.cfg.Analysis)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markResponse{Trade: trade, Snapshot: snap, Report: report})
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req closeTradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	exits := req.ExitPrices
	if len(exits) == 0 {
		trade, err := s.storage.GetTrade(id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		spot := ""
		if req.Spot != 0 {
			spot = strconv.FormatFloat(req.Spot, 'f', -1, 64)
		}
		snap, err := s.tradeSnapshot(r, trade, spot)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if exits, err = modelExits(agedLegs(trade, time.Now()), snap); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}
	trade, err := s.storage.CloseTrade(id, exits, reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"trade_id":     trade.ID,
		"reason":       trade.ExitReason,
		"realized_pnl": trade.RealizedPnL,
	}).Info("Trade closed")
	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.storage.GetStatistics())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=trades-%s.json", time.Now().Format("20060102")))
	if err := s.storage.Export(w); err != nil {
		s.logger.WithError(err).Error("Failed to export trades")
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	n, err := s.storage.Import(r.Body, replace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"imported": n,
		"replace":  replace,
	}).Info("Trades imported")
	s.writeJSON(w, http.StatusOK, importResponse{Imported: n})
}

// tradeSnapshot prices a trade's underlying from an explicit spot, falling
// back to a live quote.
func (s *Server) tradeSnapshot(r *http.Request, trade *models.Trade, spot string) (models.MarketSnapshot, error) {
	if spot == "" {
		return s.liveSnapshot(r, trade.Symbol)
	}
	price, err := strconv.ParseFloat(spot, 64)
	if err != nil || !(price > 0) || math.IsInf(price, 0) {
		return models.MarketSnapshot{}, fmt.Errorf("%w: spot must be a positive number", errBadRequest)
	}
	return s.withDefaults(models.MarketSnapshot{CurrentPrice: price}), nil
}

// agedLegs returns the trade's legs with expiry reduced by whole days held.
func agedLegs(trade *models.Trade, now time.Time) []models.StrategyLeg {
	held := 0
	if !trade.OpenedAt.IsZero() && now.After(trade.OpenedAt) {
		held = int(now.Sub(trade.OpenedAt).Hours() / 24)
	}
	legs := make([]models.StrategyLeg, len(trade.Legs))
	for i, leg := range trade.Legs {
		leg.DaysToExpiry = max(0, leg.DaysToExpiry-held)
		legs[i] = leg
	}
	return legs
}

// modelExits values each leg at its theoretical price.
func modelExits(legs []models.StrategyLeg, snap models.MarketSnapshot) ([]float64, error) {
	exits := make([]float64, len(legs))
	for i, leg := range legs {
		res, err := pnl.LegPnL(leg, snap)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		exits[i] = math.Round(res.CurrentValue*100) / 100
	}
	return exits, nil
}
