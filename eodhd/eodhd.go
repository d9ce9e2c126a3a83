// Package eodhd prices stocks with the EOD Historical Data API.
//
// Tickers use EODHD's "SYMBOL.EXCHANGE" format, e.g. "AAPL.US" or "MC.PA".
package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/etnz/folio"
	"github.com/etnz/folio/clock"
	"github.com/etnz/folio/date"
)

const DefaultBaseURL = "https://eodhd.com/api"

// Client is a folio.Provider backed by EODHD.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client // live requests
	cached  *http.Client // history and search, cached on disk for the day
	clock   clock.Clock
	log     zerolog.Logger
}

var _ folio.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL replaces DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCacheDir caches history and search responses in dir until the end of
// the day. An empty dir uses os.TempDir.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		if dir == "" {
			dir = os.TempDir()
		}
		c.cached = &http.Client{Transport: &diskCache{dir: dir}}
	}
}

// WithClock replaces the system clock.
func WithClock(k clock.Clock) Option {
	return func(c *Client) { c.clock = k }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client authenticated by apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
		clock:   clock.System,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cached == nil {
		c.cached = c.http
	} else if dc, ok := c.cached.Transport.(*diskCache); ok {
		dc.base = c.http.Transport
		if dc.base == nil {
			dc.base = http.DefaultTransport
		}
		dc.clock, dc.log = c.clock, c.log
		c.cached.Timeout = c.http.Timeout
	}
	return c
}

func (c *Client) Name() string { return "eodhd" }

func (c *Client) url(path string, query url.Values) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("missing EODHD API key")
	}
	query.Set("api_token", c.apiKey)
	query.Set("fmt", "json")
	return c.baseURL + path + "?" + query.Encode(), nil
}

// History returns the daily closes of ticker within r.
func (c *Client) History(ctx context.Context, ticker string, r date.Range) (map[date.Date]float64, error) {
	// https://eodhd.com/api/eod/MCD.US?api_token=demo&fmt=json&from=2024-01-10&to=2024-01-13
	// [{"date": "2024-01-10", "open": 675.066, "high": 684.219, "low": 648.659, "close": 668.445, "adjusted_close": 67.705, "volume": 0}]
	// bounds are included in the response.
	addr, err := c.url("/eod/"+url.PathEscape(ticker), url.Values{
		"from": {r.From.String()},
		"to":   {r.To.String()},
	})
	if err != nil {
		return nil, err
	}
	type Info struct {
		Date  date.Date       `json:"date"`
		Close decimal.Decimal `json:"close"`
	}

	// that's the payload
	content := make([]Info, 0)
	if err := jwget(ctx, c.cached, addr, &content); err != nil {
		return nil, fmt.Errorf("cannot fetch %s history: %w", ticker, err)
	}
	closes := make(map[date.Date]float64, len(content))
	for _, info := range content {
		closes[info.Date] = info.Close.InexactFloat64()
	}
	return closes, nil
}

// realTime is one item of the real-time endpoint.
type realTime struct {
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
	Close     price  `json:"close"`
}

// price decodes a number that EODHD reports as "NA" when unknown.
type price float64

func (p *price) UnmarshalJSON(b []byte) error {
	d, err := decimal.NewFromString(strings.Trim(string(b), `"`))
	if err != nil {
		*p = 0
		return nil
	}
	*p = price(d.InexactFloat64())
	return nil
}

// Quotes returns the live prices of tickers, in one request.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]folio.Quote, error) {
	if len(tickers) == 0 {
		return map[string]folio.Quote{}, nil
	}
	// https://eodhd.com/api/real-time/AAPL.US?s=VTI,EUR.FOREX&api_token=demo&fmt=json
	// a single ticker yields an object, several yield an array.
	query := url.Values{}
	if len(tickers) > 1 {
		query.Set("s", strings.Join(tickers[1:], ","))
	}
	addr, err := c.url("/real-time/"+url.PathEscape(tickers[0]), query)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := jwget(ctx, c.http, addr, &raw); err != nil {
		return nil, fmt.Errorf("cannot fetch live quotes: %w", err)
	}
	var items []realTime
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		err = json.Unmarshal(raw, &items)
	} else {
		var item realTime
		err = json.Unmarshal(raw, &item)
		items = []realTime{item}
	}
	if err != nil {
		return nil, fmt.Errorf("cannot decode live quotes: %w", err)
	}

	quotes := make(map[string]folio.Quote, len(items))
	for i, item := range items {
		key := match(tickers, item.Code, i)
		if key == "" || item.Close <= 0 {
			continue
		}
		quotes[key] = folio.Quote{
			AssetKey: key,
			Price:    float64(item.Close),
			AsOf:     time.Unix(item.Timestamp, 0).UTC(),
		}
	}
	return quotes, nil
}

// match returns the requested ticker answered by code, falling back on the
// request order, since EODHD appends ".US" to bare US symbols.
func match(tickers []string, code string, i int) string {
	for _, t := range tickers {
		if strings.EqualFold(t, code) {
			return t
		}
	}
	if i < len(tickers) && strings.HasPrefix(strings.ToUpper(code), strings.ToUpper(tickers[i])) {
		return tickers[i]
	}
	return ""
}

// SearchResult matches the structure of a single item in the EODHD search API response.
type SearchResult struct {
	Code              string    `json:"Code"`
	Exchange          string    `json:"Exchange"`
	Name              string    `json:"Name"`
	Type              string    `json:"Type"`
	Country           string    `json:"Country"`
	Currency          string    `json:"Currency"`
	ISIN              string    `json:"ISIN"`
	PreviousClose     float64   `json:"previousClose"`
	PreviousCloseDate date.Date `json:"previousCloseDate"`
}

// Ticker returns the key to use for this result.
func (r SearchResult) Ticker() string { return r.Code + "." + r.Exchange }

// Search searches for securities by name, symbol or ISIN.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	addr, err := c.url("/search/"+url.PathEscape(term), url.Values{})
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if err := jwget(ctx, c.cached, addr, &results); err != nil {
		return nil, fmt.Errorf("cannot search %q: %w", term, err)
	}
	return results, nil
}
