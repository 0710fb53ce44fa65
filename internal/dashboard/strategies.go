package dashboard

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pnl"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
	"github.com/eddiefleurent/strategy_lab/internal/validation"
)

// priceRequest leaves rate and volatility nil when the client omits them.
type priceRequest struct {
	Spot         float64           `json:"spot"`
	Strike       float64           `json:"strike"`
	DaysToExpiry int               `json:"days_to_expiry"`
	RiskFreeRate *float64          `json:"risk_free_rate,omitempty"`
	Volatility   *float64          `json:"volatility,omitempty"`
	OptionKind   models.OptionKind `json:"option_kind"`
}

type ivRequest struct {
	MarketPrice  float64           `json:"market_price"`
	Spot         float64           `json:"spot"`
	Strike       float64           `json:"strike"`
	DaysToExpiry int               `json:"days_to_expiry"`
	RiskFreeRate *float64          `json:"risk_free_rate,omitempty"`
	OptionKind   models.OptionKind `json:"option_kind"`
}

type legPnLRequest struct {
	Leg      models.StrategyLeg    `json:"leg"`
	Snapshot models.MarketSnapshot `json:"snapshot"`
}

type buildRequest struct {
	Strategy string          `json:"strategy"`
	Params   strategy.Params `json:"params"`
}

type buildResponse struct {
	strategy.Built
	Validation validation.Report `json:"validation"`
}

// analyzeRequest takes explicit legs, or a strategy name and params to build
// them. A snapshot without a price is filled from a live quote of Symbol.
type analyzeRequest struct {
	Legs          []models.StrategyLeg  `json:"legs,omitempty"`
	Strategy      string                `json:"strategy,omitempty"`
	Params        strategy.Params       `json:"params"`
	Snapshot      models.MarketSnapshot `json:"snapshot"`
	Symbol        string                `json:"symbol,omitempty"`
	MarkToMarket  bool                  `json:"mark_to_market,omitempty"`
	GridPoints    int                   `json:"grid_points,omitempty"`
	ExpectedMoves float64               `json:"expected_moves,omitempty"`
}

type validateRequest struct {
	Strategy   string               `json:"strategy"`
	Definition *strategy.Definition `json:"definition,omitempty"`
	Setup      strategy.TradeSetup  `json:"setup"`
}

type quoteResponse struct {
	Quote    *marketdata.Quote     `json:"quote"`
	Snapshot models.MarketSnapshot `json:"snapshot"`
}

// rate returns the request's rate, or the configured one when omitted.
func (s *Server) rate(r *float64) float64 {
	if r == nil {
		return s.cfg.RiskFreeRate
	}
	return *r
}

// withDefaults fills a missing rate or volatility from server configuration.
func (s *Server) withDefaults(snap models.MarketSnapshot) models.MarketSnapshot {
	if snap.RiskFreeRate == nil {
		snap.RiskFreeRate = models.Float64(s.cfg.RiskFreeRate)
	}
	if snap.ImpliedVolatility == 0 {
		snap.ImpliedVolatility = s.cfg.DefaultVolatility
	}
	return snap.WithDefaults()
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	vol := s.cfg.DefaultVolatility
	if req.Volatility != nil {
		vol = *req.Volatility
	}
	res, err := pricing.PriceOption(req.Spot, req.Strike, req.DaysToExpiry,
		s.rate(req.RiskFreeRate), vol, req.OptionKind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImpliedVolatility(w http.ResponseWriter, r *http.Request) {
	var req ivRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := pricing.ImpliedVolatility(req.MarketPrice, req.Spot, req.Strike,
		float64(req.DaysToExpiry)/365, s.rate(req.RiskFreeRate), req.OptionKind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLegPnL(w http.ResponseWriter, r *http.Request) {
	var req legPnLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := pnl.LegPnL(req.Leg, s.withDefaults(req.Snapshot))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, strategy.Definitions())
}

func (s *Server) handleBuildStrategy(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	built, err := strategy.BuildStrategy(req.Strategy, req.Params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, buildResponse{Built: built, Validation: validation.ValidateBuilt(built)})
}

func (s *Server) handleAnalyzeStrategy(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	legs := req.Legs
	if len(legs) == 0 && req.Strategy != "" {
		var err error
		if legs, err = strategy.GenerateLegs(req.Strategy, req.Params); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	snap := req.Snapshot
	if snap.CurrentPrice == 0 {
		live, err := s.liveSnapshot(r, req.Symbol)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if snap.ImpliedVolatility == 0 {
			snap.ImpliedVolatility = live.ImpliedVolatility
		}
		snap.CurrentPrice = live.CurrentPrice
	}
	snap = s.withDefaults(snap)

	if req.MarkToMarket {
		var err error
		if legs, err = pnl.MarkEntries(legs, snap); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	opts := s.cfg.Analysis
	if req.GridPoints != 0 {
		opts.GridPoints = req.GridPoints
	}
	if req.ExpectedMoves != 0 {
		opts.ExpectedMoves = req.ExpectedMoves
	}
	report, err := analysis.Aggregate(legs, snap, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidateStrategy(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var def strategy.Definition
	if req.Definition != nil {
		def = *req.Definition
	} else {
		var err error
		if def, err = strategy.Lookup(req.Strategy); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, validation.Validate(def, req.Setup))
}

func (s *Server) handleCompareStrategies(w http.ResponseWriter, r *http.Request) {
	days := s.cfg.DaysToExpiry
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: days must be a non-negative integer", errBadRequest))
			return
		}
		days = n
	}

	snap, err := s.liveSnapshot(r, r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := analysis.Compare(r.Context(), strategy.Definitions(), snap, days, s.cfg.Analysis)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, snap, err := s.quote(r, chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quoteResponse{Quote: q, Snapshot: snap})
}

// liveSnapshot prices the snapshot from a quote of symbol, or of the default
// underlying when symbol is empty.
func (s *Server) liveSnapshot(r *http.Request, symbol string) (models.MarketSnapshot, error) {
	_, snap, err := s.quote(r, symbol)
	return snap, err
}

func (s *Server) quote(r *http.Request, symbol string) (*marketdata.Quote, models.MarketSnapshot, error) {
	if s.quotes == nil {
		return nil, models.MarketSnapshot{}, fmt.Errorf("%w: no market data source, supply a snapshot", errBadRequest)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	q, err := s.quotes.GetQuote(r.Context(), symbol)
	if err != nil {
		return nil, models.MarketSnapshot{}, err
	}
	snap, err := marketdata.Snapshot(q, s.cfg.RiskFreeRate, s.cfg.DefaultVolatility)
	if err != nil {
		return nil, models.MarketSnapshot{}, err
	}
	return q, snap, nil
}
