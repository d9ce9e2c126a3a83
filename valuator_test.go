package folio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/folio/clock"
	"github.com/etnz/folio/date"
)

// afternoon of 2024-01-13 in UTC.
var now = time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)

func scenarioProvider() *fakeProvider {
	return &fakeProvider{
		name: "stocks",
		histories: map[string]map[date.Date]float64{
			"AAA": days(map[string]float64{"2024-01-10": 100, "2024-01-12": 110}),
		},
		quotes: map[string]float64{"AAA": 120},
	}
}

func TestValuatorScenario(t *testing.T) {
	stocks := scenarioProvider()
	v := NewValuator(NewFetcher(WithProvider(Stock, stocks, nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Period(4)),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})

	require.True(t, v.Refresh(context.Background()))
	s := v.Snapshot()

	assert.Equal(t, Ready, v.State())
	assert.False(t, s.Loading)
	assert.Equal(t, "2024-01-10..2024-01-13", s.FetchWindow.String())

	wantPrices := map[date.Date]float64{
		date.MustParse("2024-01-10"): 100,
		date.MustParse("2024-01-11"): 100,
		date.MustParse("2024-01-12"): 110,
		date.MustParse("2024-01-13"): 120,
	}
	aaa, ok := s.Prices.Series("AAA")
	require.True(t, ok)
	assert.Equal(t, wantPrices, aaa.Map())

	assert.Equal(t, []any{200.0, 200.0, 220.0, 240.0}, values(s.Series))
	assert.Equal(t, 240.0, s.TotalValue)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, 240.0, s.Rows[0].Value)
	assert.Empty(t, s.Failed)
}

func TestValuatorIsIdempotent(t *testing.T) {
	v := NewValuator(NewFetcher(WithProvider(Stock, scenarioProvider(), nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Period(4)),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})

	v.Refresh(context.Background())
	first := v.Snapshot()
	v.Refresh(context.Background())
	second := v.Snapshot()

	assert.Equal(t, first.Series, second.Series)
	assert.Equal(t, first.TotalValue, second.TotalValue)
}

func TestValuatorEmptyHoldings(t *testing.T) {
	stocks := scenarioProvider()
	var published []Snapshot
	v := NewValuator(NewFetcher(WithProvider(Stock, stocks, nil)),
		WithClock(clock.NewFake(now)),
		OnPublish(func(s Snapshot) { published = append(published, s) }),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})
	v.Refresh(context.Background())
	require.NotZero(t, v.Snapshot().TotalValue)

	v.SetHoldings(nil)
	v.Refresh(context.Background())
	s := v.Snapshot()
	assert.Zero(t, s.TotalValue)
	assert.Empty(t, s.Series)
	assert.Empty(t, s.Prices.Keys())
	assert.Len(t, published, 2)
	assert.Len(t, stocks.Calls(), 2, "no fetch without holdings")
}

func TestValuatorSurvivesProviderFailures(t *testing.T) {
	stocks := &fakeProvider{
		name:       "stocks",
		historyErr: map[string]error{"AAA": errors.New("boom")},
		quoteErr:   errors.New("boom"),
	}
	v := NewValuator(NewFetcher(WithProvider(Stock, stocks, nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Week),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10"), coin("", 1, "2024-01-10")})

	v.Refresh(context.Background())
	s := v.Snapshot()
	assert.Equal(t, []string{"AAA"}, s.Failed)
	assert.Len(t, s.Series, 7)
	assert.Equal(t, []any{nil, nil, nil, nil, nil, nil, nil}, values(s.Series))
	assert.Equal(t, StatusNoPrice, s.Rows[0].Status)
	assert.Equal(t, StatusNeedsUpdate, s.Rows[1].Status)
}

func TestValuatorSingleFlight(t *testing.T) {
	stocks := scenarioProvider()
	stocks.histories["BBB"] = days(map[string]float64{"2024-01-13": 10})
	stocks.entered = make(chan string, 10)
	stocks.gate = make(chan struct{})

	var published []Snapshot
	v := NewValuator(NewFetcher(WithProvider(Stock, stocks, nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Period(4)),
		OnPublish(func(s Snapshot) { published = append(published, s) }),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})

	done := make(chan bool)
	go func() { done <- v.Refresh(context.Background()) }()
	select {
	case <-stocks.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not start")
	}
	assert.Equal(t, Loading, v.State())
	assert.True(t, v.Snapshot().Loading)

	// a second trigger while loading is queued, not run concurrently.
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10"), stock("BBB", 1, "2024-01-13")})
	assert.False(t, v.Refresh(context.Background()))

	close(stocks.gate)
	require.True(t, <-done)

	assert.Equal(t, []string{"history:AAA", "quotes", "history:AAA", "history:BBB", "quotes"}, stocks.Calls())
	require.Len(t, published, 1, "one publication for the coalesced cycles")
	assert.Equal(t, 250.0, published[0].TotalValue)
	assert.Equal(t, Ready, v.State())
}

func TestValuatorRun(t *testing.T) {
	stocks := scenarioProvider()
	published := make(chan Snapshot, 10)
	v := NewValuator(NewFetcher(WithProvider(Stock, stocks, nil)),
		WithClock(clock.NewFake(now)),
		OnPublish(func(s Snapshot) { published <- s }),
	)

	events := make(chan Event, 2)
	events <- HoldingsChanged([]Holding{stock("AAA", 2, "2024-01-10")})
	events <- PeriodChanged(date.Period(4))
	close(events)

	require.NoError(t, v.Run(context.Background(), events))
	require.Len(t, published, 1, "queued events are coalesced")
	s := <-published
	assert.Equal(t, date.Period(4), s.Period)
	assert.Equal(t, []any{200.0, 200.0, 220.0, 240.0}, values(s.Series))
}

func TestValuatorRunStopsOnCancel(t *testing.T) {
	v := NewValuator(NewFetcher(), WithClock(clock.NewFake(now)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, v.Run(ctx, make(chan Event)), context.Canceled)
}

func TestValuatorKeepsSnapshotWhenInterrupted(t *testing.T) {
	var published []Snapshot
	v := NewValuator(NewFetcher(WithProvider(Stock, scenarioProvider(), nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Period(4)),
		OnPublish(func(s Snapshot) { published = append(published, s) }),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})
	require.True(t, v.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, v.Refresh(ctx))

	s := v.Snapshot()
	assert.Equal(t, 240.0, s.TotalValue)
	assert.Equal(t, []any{200.0, 200.0, 220.0, 240.0}, values(s.Series))
	assert.Empty(t, s.Failed)
	assert.Equal(t, Ready, v.State())
	assert.Len(t, published, 1, "an interrupted cycle is not published")

	assert.True(t, v.Refresh(context.Background()), "the valuator is not left in flight")
}

func TestValuatorIgnoresInvalidPeriod(t *testing.T) {
	v := NewValuator(NewFetcher(WithProvider(Stock, scenarioProvider(), nil)),
		WithClock(clock.NewFake(now)),
		WithPeriod(date.Period(-3)),
	)
	v.SetHoldings([]Holding{stock("AAA", 2, "2024-01-10")})
	require.True(t, v.Refresh(context.Background()))
	assert.Equal(t, date.Month, v.Snapshot().Period)

	v.SetPeriod(0)
	v.Apply(PeriodChanged(-1))
	require.True(t, v.Refresh(context.Background()))
	assert.Equal(t, date.Month, v.Snapshot().Period)
	assert.Len(t, v.Snapshot().Series, 30)
}
