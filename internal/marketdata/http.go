package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPProvider reads quotes from a brokerage style REST endpoint:
// GET {baseURL}/markets/quotes?symbols=SYM.
type HTTPProvider struct {
	client  *http.Client
	logger  *logrus.Logger
	name    string
	baseURL string
	apiKey  string
}

// NewHTTPProvider creates a provider for baseURL. A zero timeout uses 10s.
func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (p *HTTPProvider) WithHTTPClient(c *http.Client) *HTTPProvider {
	if c != nil {
		p.client = c
	}
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return p.name }

// singleOrArray decodes a JSON value that is either one object or a list.
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type quotesResponse struct {
	Quotes struct {
		Quote singleOrArray[quoteItem] `json:"quote"`
	} `json:"quotes"`
}

type quoteItem struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Volume    int64   `json:"volume"`
	TradeDate int64   `json:"trade_date"` // unix millis
	MidIV     float64 `json:"mid_iv"`
}

// GetQuote implements Provider.
func (p *HTTPProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")
	endpoint := p.baseURL + "/markets/quotes?" + params.Encode()

	var response quotesResponse
	if err := p.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	quotes := response.Quotes.Quote
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s from %s", ErrNoQuote, symbol, p.name)
	}
	item := quotes[0]
	ts := time.Now()
	if item.TradeDate > 0 {
		ts = time.UnixMilli(item.TradeDate)
	}
	return &Quote{
		Timestamp:         ts,
		Symbol:            item.Symbol,
		Source:            p.name,
		Last:              item.Last,
		Bid:               item.Bid,
		Ask:               item.Ask,
		Volume:            item.Volume,
		ImpliedVolatility: item.MidIV,
	}, nil
}

func (p *HTTPProvider) get(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Add("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.WithError(err).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: "GET " + endpoint + " -> failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s", endpoint, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil && err != io.EOF {
		return fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	return nil
}
