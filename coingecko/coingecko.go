// Package coingecko prices cryptocurrencies with the CoinGecko API.
//
// Asset keys are CoinGecko coin ids such as "bitcoin" or "wrapped-bitcoin",
// see Client.Search to find them.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"

	"github.com/etnz/folio"
	"github.com/etnz/folio/cache"
	"github.com/etnz/folio/clock"
	"github.com/etnz/folio/date"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// CoinListTTL is how long the coin list is kept before being fetched again.
	CoinListTTL = 24 * time.Hour
)

// Coin is an entry of the coin list.
type Coin struct {
	ID     string `json:"id" msgpack:"id"`
	Symbol string `json:"symbol" msgpack:"symbol"`
	Name   string `json:"name" msgpack:"name"`
}

// Client is a folio.Provider backed by CoinGecko.
type Client struct {
	apiKey    string
	baseURL   string
	currency  string
	http      *http.Client
	clock     clock.Clock
	log       zerolog.Logger
	coinsFile string
	coins     *cache.Cache[[]Coin]
}

var _ folio.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends a demo API key with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL replaces DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCurrency sets the quote currency, "usd" by default.
func WithCurrency(cur string) Option {
	return func(c *Client) { c.currency = strings.ToLower(cur) }
}

// WithClock replaces the system clock.
func WithClock(k clock.Clock) Option {
	return func(c *Client) { c.clock = k }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCoinListFile persists the coin list to path across runs.
func WithCoinListFile(path string) Option {
	return func(c *Client) { c.coinsFile = path }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		currency: "usd",
		http:     http.DefaultClient,
		clock:    clock.System,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	copts := []cache.Option[[]Coin]{cache.WithClock[[]Coin](c.clock), cache.WithLogger[[]Coin](c.log)}
	if c.coinsFile != "" {
		copts = append(copts, cache.WithFile[[]Coin](c.coinsFile))
	}
	c.coins = cache.New(CoinListTTL, copts...)
	return c
}

func (c *Client) Name() string { return "coingecko" }

// apiError covers both error payloads CoinGecko answers with.
type apiError struct {
	Status *struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Error string `json:"error"`
}

func (e apiError) err() error {
	switch {
	case e.Status != nil && e.Status.ErrorCode != 0:
		return fmt.Errorf("coingecko error %d: %s", e.Status.ErrorCode, e.Status.ErrorMessage)
	case e.Error != "":
		return fmt.Errorf("coingecko error: %s", e.Error)
	}
	return nil
}

// get fetches path and decodes its JSON body into data.
func (c *Client) get(ctx context.Context, path string, query url.Values, data any) error {
	addr := c.baseURL + path
	if len(query) > 0 {
		addr += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.log.Debug().Str("path", path).Str("status", resp.Status).Msg("coingecko request")

	var payload apiError
	if json.Unmarshal(body, &payload) == nil {
		if err := payload.err(); err != nil {
			return err
		}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %s: %s", path, resp.Status)
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return nil
}

// History returns the daily prices of coin id within r. CoinGecko answers
// with several samples a day for short ranges, the last one of each UTC day
// is kept.
func (c *Client) History(ctx context.Context, id string, r date.Range) (map[date.Date]float64, error) {
	from := r.From.Time()
	to := r.To.Add(1).Time().Add(-time.Second)
	var content struct {
		Prices [][2]float64 `json:"prices"` // [unix ms, price]
	}
	err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart/range", url.Values{
		"vs_currency": {c.currency},
		"from":        {strconv.FormatInt(from.Unix(), 10)},
		"to":          {strconv.FormatInt(to.Unix(), 10)},
	}, &content)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch %s history: %w", id, err)
	}
	slices.SortStableFunc(content.Prices, func(a, b [2]float64) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	prices := make(map[date.Date]float64)
	for _, sample := range content.Prices {
		day := date.Of(time.UnixMilli(int64(sample[0])))
		if r.Contains(day) {
			prices[day] = sample[1]
		}
	}
	return prices, nil
}

// Quotes returns the live prices of coin ids, in one request.
func (c *Client) Quotes(ctx context.Context, ids []string) (map[string]folio.Quote, error) {
	quotes := make(map[string]folio.Quote)
	if len(ids) == 0 {
		return quotes, nil
	}
	// {"bitcoin":{"usd":42000.5,"last_updated_at":1705154400}}
	var jobj any
	err := c.get(ctx, "/simple/price", url.Values{
		"ids":                     {strings.Join(ids, ",")},
		"vs_currencies":           {c.currency},
		"include_last_updated_at": {"true"},
	}, &jobj)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch live quotes: %w", err)
	}
	for _, id := range ids {
		price, err := lookup(jobj, fmt.Sprintf("$[%q][%q]", id, c.currency))
		if err != nil {
			c.log.Debug().Str("id", id).Err(err).Msg("no live quote")
			continue
		}
		asOf := c.clock.Now()
		if ts, err := lookup(jobj, fmt.Sprintf("$[%q].last_updated_at", id)); err == nil {
			asOf = time.Unix(int64(ts), 0)
		}
		quotes[id] = folio.Quote{AssetKey: id, Price: price, AsOf: asOf.UTC()}
	}
	return quotes, nil
}

// lookup returns the number at path in jobj.
func lookup(jobj any, path string) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, err
	}
	// jsonpath may return a list of 1 answer, keep the first one if any
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok {
		return 0, fmt.Errorf("%s is not a number: %v", path, jval)
	}
	return val, nil
}

// Coins returns the list of all coins, from the cache when fresh.
func (c *Client) Coins(ctx context.Context) ([]Coin, error) {
	return c.coins.GetOrFetch(ctx, func(ctx context.Context) ([]Coin, error) {
		var coins []Coin
		if err := c.get(ctx, "/coins/list", nil, &coins); err != nil {
			return nil, fmt.Errorf("cannot fetch coin list: %w", err)
		}
		c.log.Info().Int("coins", len(coins)).Msg("coin list refreshed")
		return coins, nil
	})
}

// Search returns the coins whose id, symbol or name contains term, exact
// symbol matches first.
func (c *Client) Search(ctx context.Context, term string) ([]Coin, error) {
	coins, err := c.Coins(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	var exact, partial []Coin
	for _, coin := range coins {
		switch {
		case strings.ToLower(coin.Symbol) == term || coin.ID == term:
			exact = append(exact, coin)
		case strings.Contains(coin.ID, term) || strings.Contains(strings.ToLower(coin.Name), term):
			partial = append(partial, coin)
		}
	}
	return append(exact, partial...), nil
}
