package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/folio/clock"
	"github.com/etnz/folio/date"
)

type route struct {
	status int
	body   string
}

func newServer(t *testing.T, routes map[string]route) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		rt, ok := routes[r.URL.Path]
		if !ok {
			rt = route{http.StatusNotFound, `{"error":"coin not found"}`}
		}
		if rt.status == 0 {
			rt.status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rt.status)
		w.Write([]byte(rt.body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestHistoryKeepsLastSampleOfDay(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"prices":[` +
			`[` + itoa(ms("2024-01-10T00:05:00Z")) + `,100],` +
			`[` + itoa(ms("2024-01-10T23:55:00Z")) + `,105],` +
			`[` + itoa(ms("2024-01-12T12:00:00Z")) + `,110],` +
			`[` + itoa(ms("2024-01-14T12:00:00Z")) + `,999]` +
			`]}`))
	}))
	defer srv.Close()
	c := New(WithBaseURL(srv.URL))

	r := date.NewRange(date.MustParse("2024-01-10"), date.MustParse("2024-01-13"))
	got, err := c.History(context.Background(), "bitcoin", r)
	require.NoError(t, err)
	assert.Equal(t, map[date.Date]float64{
		date.MustParse("2024-01-10"): 105,
		date.MustParse("2024-01-12"): 110,
	}, got)
	assert.Contains(t, query, "from=1704844800")
	assert.Contains(t, query, "to=1705190399")
	assert.Contains(t, query, "vs_currency=usd")
}

func TestErrorPayloads(t *testing.T) {
	srv, _ := newServer(t, map[string]route{
		"/coins/limited/market_chart/range": {http.StatusTooManyRequests, `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`},
		"/coins/weird/market_chart/range":   {http.StatusOK, `{"error":"invalid vs_currency"}`},
	})
	c := New(WithBaseURL(srv.URL))
	r := date.NewRange(date.MustParse("2024-01-10"), date.MustParse("2024-01-13"))

	_, err := c.History(context.Background(), "limited", r)
	assert.ErrorContains(t, err, "coingecko error 429")

	_, err = c.History(context.Background(), "weird", r)
	assert.ErrorContains(t, err, "invalid vs_currency")

	_, err = c.History(context.Background(), "missing", r)
	assert.ErrorContains(t, err, "coin not found")
}

func TestQuotes(t *testing.T) {
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-cg-demo-api-key")
		assert.Equal(t, "bitcoin,ethereum,nope", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"bitcoin":{"usd":42000.5,"last_updated_at":1705154400},"ethereum":{"usd":2500}}`))
	}))
	defer srv.Close()
	fake := clock.NewFake(time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC))
	c := New(WithBaseURL(srv.URL), WithAPIKey("demo-key"), WithClock(fake))

	got, err := c.Quotes(context.Background(), []string{"bitcoin", "ethereum", "nope"})
	require.NoError(t, err)
	assert.Equal(t, "demo-key", apiKey)
	require.Len(t, got, 2)
	assert.Equal(t, 42000.5, got["bitcoin"].Price)
	assert.Equal(t, time.Unix(1705154400, 0).UTC(), got["bitcoin"].AsOf)
	assert.Equal(t, 2500.0, got["ethereum"].Price)
	assert.Equal(t, fake.Now(), got["ethereum"].AsOf)
}

func TestSearchCachesCoinList(t *testing.T) {
	srv, hits := newServer(t, map[string]route{
		"/coins/list": {body: `[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},
			{"id":"wrapped-bitcoin","symbol":"wbtc","name":"Wrapped Bitcoin"},
			{"id":"ethereum","symbol":"eth","name":"Ethereum"}
		]`},
	})
	fake := clock.NewFake(time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC))
	file := filepath.Join(t.TempDir(), "coins.msgpack")
	c := New(WithBaseURL(srv.URL), WithClock(fake), WithCoinListFile(file))

	got, err := c.Search(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bitcoin", got[0].ID)

	got, err = c.Search(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin", "wrapped-bitcoin"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, int32(1), hits.Load(), "coin list is cached")

	// a new client reads the persisted list.
	again := New(WithBaseURL(srv.URL), WithClock(fake), WithCoinListFile(file))
	_, err = again.Search(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	fake.Advance(CoinListTTL)
	_, err = c.Search(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "coin list refetched after a day")
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}
