package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
	"github.com/eddiefleurent/strategy_lab/internal/storage"
	"github.com/eddiefleurent/strategy_lab/internal/validation"
)

func newTestServer(t *testing.T, quotes marketdata.Provider, token string) (*Server, *storage.MockStorage) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := storage.NewMockStorage()
	srv := NewServer(Config{
		AuthToken:         token,
		RiskFreeRate:      0.05,
		DefaultVolatility: 0.2,
		Analysis:          analysis.DefaultOptions,
		DaysToExpiry:      30,
		Symbol:            "SPY",
	}, store, quotes, logger)
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var bullPutTrade = map[string]interface{}{
	"symbol":   "spy",
	"strategy": "bull_put_spread",
	"params": map[string]interface{}{
		"short_strike": 180,
		"long_strike":  175,
		"premiums":     []float64{3.5, 1.0},
	},
	"entry_spot": 185,
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	rec := do(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]interface{}](t, rec)["status"])
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, nil, "secret")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing token", "/api/strategies", "", http.StatusUnauthorized},
		{"wrong token", "/api/strategies", "nope", http.StatusUnauthorized},
		{"header token", "/api/strategies", "secret", http.StatusOK},
		{"query token", "/api/strategies?token=secret", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-Auth-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlePrice(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/price", priceRequest{
		Spot: 100, Strike: 100, DaysToExpiry: 365, RiskFreeRate: models.Float64(0.05), Volatility: models.Float64(0.2),
		OptionKind: models.Call,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[pricing.Result](t, rec)
	assert.InDelta(t, 10.45, res.Price, 0.01)
	assert.InDelta(t, 0.637, res.Delta, 0.001)

	rec = do(t, srv, http.MethodPost, "/api/price", priceRequest{Spot: -1, Strike: 100, OptionKind: models.Call})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/price", `{"spot": 100, "bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePrice_OmittedAndZeroInputs(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantPrice float64
	}{
		{
			name:      "omitted rate and volatility use configuration",
			body:      `{"spot": 100, "strike": 100, "days_to_expiry": 365, "option_kind": "call"}`,
			wantCode:  http.StatusOK,
			wantPrice: 10.4506,
		},
		{
			name:      "zero rate is priced as given",
			body:      `{"spot": 100, "strike": 100, "days_to_expiry": 365, "risk_free_rate": 0, "volatility": 0.2, "option_kind": "call"}`,
			wantCode:  http.StatusOK,
			wantPrice: 7.9656,
		},
		{
			name:     "zero volatility before expiry is rejected",
			body:     `{"spot": 100, "strike": 100, "days_to_expiry": 30, "volatility": 0, "option_kind": "call"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "zero volatility at expiry is intrinsic",
			body:      `{"spot": 110, "strike": 100, "days_to_expiry": 0, "volatility": 0, "option_kind": "call"}`,
			wantCode:  http.StatusOK,
			wantPrice: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/price", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.InDelta(t, tt.wantPrice, decode[pricing.Result](t, rec).Price, 1e-3)
			}
		})
	}
}

func TestHandleImpliedVolatility(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/iv", ivRequest{
		MarketPrice: 10.45, Spot: 100, Strike: 100, DaysToExpiry: 365, RiskFreeRate: models.Float64(0.05),
		OptionKind: models.Call,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[pricing.IVResult](t, rec)
	assert.True(t, res.Converged)
	assert.InDelta(t, 0.2, res.Volatility, 0.001)
}

func TestHandleLegPnL(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/legs/pnl", legPnLRequest{
		Leg: models.StrategyLeg{
			Action: models.Sell, OptionKind: models.Put, Strike: 180, Quantity: 1, DaysToExpiry: 0, EntryPrice: 3,
		},
		Snapshot: models.MarketSnapshot{CurrentPrice: 190},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 300, decode[map[string]interface{}](t, rec)["total_pnl"], 1e-9)

	rec = do(t, srv, http.MethodPost, "/api/legs/pnl", `{
		"leg": {"action": "buy", "option_kind": "call", "strike": 100, "quantity": 1, "days_to_expiry": 365},
		"snapshot": {"current_price": 100, "implied_volatility": 0.2, "risk_free_rate": 0}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 7.9656, decode[map[string]interface{}](t, rec)["current_value"], 1e-3)
}

func TestHandleListStrategies(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	rec := do(t, srv, http.MethodGet, "/api/strategies", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 8)
}

func TestHandleBuildStrategy(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/strategies/build", map[string]interface{}{
		"strategy": "Bull Put Spread",
		"params":   map[string]interface{}{"short_strike": 180, "long_strike": 175},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Legs  []models.StrategyLeg `json:"legs"`
		Setup struct {
			Action string `json:"action"`
		} `json:"setup"`
		Validation validation.Report `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Legs, 2)
	assert.Equal(t, models.Put, resp.Legs[0].OptionKind)
	assert.Equal(t, "Sell 180 Put / Buy 175 Put", resp.Setup.Action)
	assert.True(t, resp.Validation.IsValid)

	t.Run("strike order violation", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/strategies/build", map[string]interface{}{
			"strategy": "bull_put_spread",
			"params":   map[string]interface{}{"short_strike": 175, "long_strike": 180},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/strategies/build", map[string]interface{}{"strategy": "jade lizard"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleValidateStrategy(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/strategies/validate", map[string]interface{}{
		"strategy": "Bull Put Spread",
		"setup":    map[string]interface{}{"action": "Buy 180 Call", "legs": []string{"BUY 180 CALL"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[validation.Report](t, rec)
	assert.False(t, report.IsValid)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, validation.PutSpreadHasCalls, report.Errors[0].Kind)
	assert.Equal(t, models.SeverityCritical, report.Errors[0].Severity)

	rec = do(t, srv, http.MethodPost, "/api/strategies/validate", map[string]interface{}{
		"strategy": "Calendar Spread",
		"setup":    map[string]interface{}{"action": "Buy 100 Call"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAnalyzeStrategy(t *testing.T) {
	t.Run("explicit snapshot", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, "")
		rec := do(t, srv, http.MethodPost, "/api/strategies/analyze", map[string]interface{}{
			"strategy": "Bull Put Spread",
			"params": map[string]interface{}{
				"short_strike": 180, "long_strike": 175, "premiums": []float64{3.5, 1.0},
			},
			"snapshot": map[string]interface{}{"current_price": 185, "implied_volatility": 0.2},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		report := decode[analysis.Report](t, rec)
		assert.InDelta(t, 250, report.NetPremium, 1e-9)
		require.Len(t, report.Breakevens, 1)
		assert.InDelta(t, 177.5, report.Breakevens[0], 1e-9)
		assert.InDelta(t, 250, report.MaxProfit.Amount, 1e-9)
		assert.InDelta(t, -250, report.MaxLoss.Amount, 1e-9)
		assert.False(t, report.MaxLoss.IsUnlimited)
		assert.Len(t, report.Legs, 2)
	})

	t.Run("no snapshot and no market data", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, "")
		rec := do(t, srv, http.MethodPost, "/api/strategies/analyze", map[string]interface{}{
			"strategy": "Long Straddle",
			"params":   map[string]interface{}{"center": 100},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("live quote and mark to market", func(t *testing.T) {
		quotes := marketdata.NewMockProvider(100, 0.2)
		quotes.SetPrice("SPY", 100)
		srv, _ := newTestServer(t, quotes, "")
		rec := do(t, srv, http.MethodPost, "/api/strategies/analyze", map[string]interface{}{
			"strategy":       "Long Straddle",
			"params":         map[string]interface{}{"center": 100},
			"mark_to_market": true,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		report := decode[analysis.Report](t, rec)
		assert.Less(t, report.NetPremium, 0.0)
		assert.InDelta(t, 0, report.TotalPnL, 1e-6)
		assert.True(t, report.MaxProfit.IsUnlimited)
		assert.Len(t, report.Breakevens, 2)
	})

	t.Run("no legs", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, "")
		rec := do(t, srv, http.MethodPost, "/api/strategies/analyze", map[string]interface{}{
			"snapshot": map[string]interface{}{"current_price": 100},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleCompareStrategies(t *testing.T) {
	quotes := marketdata.NewMockProvider(450, 0.2)
	srv, _ := newTestServer(t, quotes, "")

	rec := do(t, srv, http.MethodGet, "/api/strategies/compare?symbol=qqq&days=45", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []struct {
		Definition struct {
			Name string `json:"name"`
		} `json:"definition"`
		Report analysis.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NotEmpty(t, r.Definition.Name)
		assert.NotEmpty(t, r.Report.Legs)
	}

	rec = do(t, srv, http.MethodGet, "/api/strategies/compare?days=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetQuote(t *testing.T) {
	srv, _ := newTestServer(t, marketdata.NewMockProvider(450, 0.2), "")

	rec := do(t, srv, http.MethodGet, "/api/quotes/spy", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[quoteResponse](t, rec)
	require.NotNil(t, resp.Quote)
	assert.Equal(t, "SPY", resp.Quote.Symbol)
	assert.Greater(t, resp.Snapshot.CurrentPrice, 0.0)
}

func TestTradeLifecycle(t *testing.T) {
	srv, store := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/trades", bullPutTrade)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trade := decode[models.Trade](t, rec)
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, "SPY", trade.Symbol)
	assert.Equal(t, "Bull Put Spread", trade.Strategy)
	assert.Equal(t, models.TradeOpen, trade.State)
	require.Len(t, trade.Legs, 2)

	rec = do(t, srv, http.MethodGet, "/api/trades?state=open&symbol=SPY", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Trade](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/trades?strategy=iron%20condor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Trade](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/trades/"+trade.ID+"/mark?spot=185", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mark := decode[markResponse](t, rec)
	assert.InDelta(t, 185, mark.Snapshot.CurrentPrice, 1e-9)
	assert.Len(t, mark.Report.Legs, 2)
	assert.InDelta(t, 250, mark.Report.NetPremium, 1e-9)

	rec = do(t, srv, http.MethodPost, "/api/trades/"+trade.ID+"/close", closeTradeRequest{ExitPrices: []float64{0.5}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/trades/"+trade.ID+"/close",
		closeTradeRequest{ExitPrices: []float64{0.5, 0.1}, Reason: "profit target"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[models.Trade](t, rec)
	assert.Equal(t, models.TradeClosed, closed.State)
	assert.Equal(t, "profit target", closed.ExitReason)
	assert.InDelta(t, 210, closed.RealizedPnL, 1e-9)

	rec = do(t, srv, http.MethodPost, "/api/trades/"+trade.ID+"/close", closeTradeRequest{ExitPrices: []float64{0, 0}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/trades/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[storage.Statistics](t, rec)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.InDelta(t, 210, stats.TotalPnL, 1e-9)

	rec = do(t, srv, http.MethodDelete, "/api/trades/"+trade.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/trades/"+trade.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.ListTrades(storage.TradeFilter{}))
}

func TestHandleCloseTrade_ModelExits(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	rec := do(t, srv, http.MethodPost, "/api/trades", bullPutTrade)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trade := decode[models.Trade](t, rec)

	// far above both strikes the puts are close to worthless
	rec = do(t, srv, http.MethodPost, "/api/trades/"+trade.ID+"/close", closeTradeRequest{Spot: 250})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[models.Trade](t, rec)
	assert.Equal(t, "manual", closed.ExitReason)
	assert.InDelta(t, 250, closed.RealizedPnL, 1)
}

func TestHandleAddTrade_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"unknown strategy without legs", map[string]interface{}{"strategy": "jade lizard"}, http.StatusNotFound},
		{"unknown field", `{"strategy": "bull put spread", "size": 3}`, http.StatusBadRequest},
		{"malformed json", `{"strategy":`, http.StatusBadRequest},
		{"invalid explicit leg", map[string]interface{}{
			"strategy": "custom",
			"legs":     []map[string]interface{}{{"action": "hold", "option_kind": "put", "strike": 100, "quantity": 1}},
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/trades", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/trades?state=pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportImport(t *testing.T) {
	src, _ := newTestServer(t, nil, "")
	rec := do(t, src, http.MethodPost, "/api/trades", bullPutTrade)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, src, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=trades-"))
	exported := rec.Body.String()

	dst, store := newTestServer(t, nil, "")
	rec = do(t, dst, http.MethodPost, "/api/import", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[importResponse](t, rec).Imported)
	assert.Len(t, store.ListTrades(storage.TradeFilter{}), 1)

	rec = do(t, dst, http.MethodPost, "/api/import", exported)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, dst, http.MethodPost, "/api/import?replace=true", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, store.ListTrades(storage.TradeFilter{}), 1)

	rec = do(t, dst, http.MethodPost, "/api/import", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
