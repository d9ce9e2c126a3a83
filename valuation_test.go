package folio

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/folio/date"
)

func TestFillForward(t *testing.T) {
	d0 := date.MustParse("2024-01-10")
	p := NewPriceHistory()
	p.Set("AAA", d0, 10)
	p.FillForward(date.NewRange(d0, d0.Add(2)))

	for i := range 3 {
		got, ok := p.Price("AAA", d0.Add(i))
		assert.True(t, ok, "day %d", i)
		assert.Equal(t, 10.0, got)
	}
	_, ok := p.Price("AAA", d0.Add(-1))
	assert.False(t, ok, "nothing is filled before the first price")
}

func TestMergeIgnoresInvalidPrices(t *testing.T) {
	p := prices(map[string]map[string]float64{
		"AAA": {"2024-01-10": 100, "2024-01-11": 0, "2024-01-12": math.NaN(), "2024-01-13": -3},
		"BBB": {},
	})
	s, ok := p.Series("AAA")
	require.True(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"AAA", "BBB"}, p.Keys(), "an empty answer still creates the series")
}

func TestInject(t *testing.T) {
	today := date.MustParse("2024-01-13")
	p := prices(map[string]map[string]float64{"AAA": {"2024-01-13": 110}})

	ignored := p.Inject(today, map[string]Quote{
		"AAA": {AssetKey: "AAA", Price: 120},
		"BBB": {AssetKey: "BBB", Price: 0},
		"CCC": {AssetKey: "CCC", Price: 3},
	})
	assert.Equal(t, []string{"BBB"}, ignored)

	got, _ := p.Price("AAA", today)
	assert.Equal(t, 120.0, got, "live quote overwrites the close")
	got, _ = p.Price("CCC", today)
	assert.Equal(t, 3.0, got)
	_, ok := p.Price("BBB", today)
	assert.False(t, ok)
}

func TestResolveWindow(t *testing.T) {
	today := date.MustParse("2024-06-30")
	start := today.Add(-89)

	recent := []Holding{stock("AAA", 1, start.Add(10).String())}
	r, ok := ResolveWindow(recent, date.Quarter, today)
	assert.True(t, ok)
	assert.Equal(t, date.NewRange(start, today), r)

	old := []Holding{
		stock("AAA", 1, start.Add(10).String()),
		coin("bitcoin", 1, "2023-01-05"),
	}
	r, _ = ResolveWindow(old, date.Quarter, today)
	assert.Equal(t, date.NewRange(date.MustParse("2023-01-05"), today), r)

	_, ok = ResolveWindow(nil, date.Week, today)
	assert.False(t, ok, "no window without holdings")
}

func TestKeysOf(t *testing.T) {
	keys := KeysOf([]Holding{
		stock("BBB", 1, "2024-01-10"),
		stock("AAA", 1, "2024-01-10"),
		stock("AAA", 2, "2024-01-11"),
		coin("", 1, "2024-01-10"),
		coin("bitcoin", 1, "2024-01-10"),
	})
	assert.Equal(t, []string{"AAA", "BBB"}, keys[Stock])
	assert.Equal(t, []string{"bitcoin"}, keys[Crypto])
	assert.Equal(t, 3, keys.Len())
	assert.Equal(t, []AssetType{Crypto, Stock}, keys.Types())
}

func TestValuate(t *testing.T) {
	r := date.NewRange(date.MustParse("2024-01-08"), date.MustParse("2024-01-13"))
	p := prices(map[string]map[string]float64{
		"AAA":     {"2024-01-10": 100, "2024-01-11": 100, "2024-01-12": 110},
		"bitcoin": {"2024-01-12": 40000},
	})
	holdings := []Holding{
		stock("AAA", 2, "2024-01-09"),
		coin("bitcoin", 0.01, "2024-01-12"),
		coin("", 5, "2024-01-08"), // unresolvable, never counted
	}

	points := Valuate(holdings, p, r)
	assert.Equal(t, []any{nil, nil, 200.0, 200.0, 620.0, 620.0}, values(points))
	assert.Equal(t, 620.0, TotalValue(points))
}

func TestValuateSkipsHoldingsNotYetBought(t *testing.T) {
	r := date.NewRange(date.MustParse("2024-01-10"), date.MustParse("2024-01-12"))
	p := prices(map[string]map[string]float64{
		"AAA": {"2024-01-10": 10, "2024-01-11": 10, "2024-01-12": 10},
		"BBB": {"2024-01-10": 1, "2024-01-11": 1, "2024-01-12": 1},
	})
	holdings := []Holding{stock("AAA", 1, "2024-01-10"), stock("BBB", 5, "2024-01-11")}
	assert.Equal(t, []any{10.0, 15.0, 15.0}, values(Valuate(holdings, p, r)))
}

func TestValuateCarriesTotalForward(t *testing.T) {
	r := date.NewRange(date.MustParse("2024-01-01"), date.MustParse("2024-01-05"))
	p := prices(map[string]map[string]float64{
		"AAA": {"2024-01-01": 100, "2024-01-04": 250},
	})
	holdings := []Holding{stock("AAA", 2, "2024-01-01")}
	// no fill-forward here: days 02, 03 and 05 have no price at all.
	assert.Equal(t, []any{200.0, 200.0, 200.0, 500.0, 500.0}, values(Valuate(holdings, p, r)))
}

func TestValuateEmpty(t *testing.T) {
	r := date.NewRange(date.MustParse("2024-01-01"), date.MustParse("2024-01-03"))
	points := Valuate(nil, NewPriceHistory(), r)
	assert.Len(t, points, 3)
	assert.Equal(t, 0.0, TotalValue(points))
}

func TestPointJSON(t *testing.T) {
	points := []Point{
		{Day: date.MustParse("2024-01-10")},
		{Day: date.MustParse("2024-01-11"), Value: 200, Known: true},
	}
	got, err := json.Marshal(points)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"day":"2024-01-10","totalValue":null},{"day":"2024-01-11","totalValue":200}]`, string(got))
}

func TestRows(t *testing.T) {
	today := date.MustParse("2024-01-13")
	p := prices(map[string]map[string]float64{"AAA": {"2024-01-13": 120}})
	aaa := stock("AAA", 2, "2024-01-10")
	aaa.PurchasePrice = 100
	holdings := []Holding{aaa, stock("BBB", 1, "2024-01-10"), coin("", 1, "2024-01-10")}

	rows := Rows(holdings, p, today)
	require.Len(t, rows, 3)

	assert.Equal(t, StatusOK, rows[0].Status)
	assert.Equal(t, 240.0, rows[0].Value)
	assert.Equal(t, 200.0, rows[0].Cost)
	assert.Equal(t, 40.0, rows[0].Gain)
	assert.True(t, rows[0].HasGain())

	assert.Equal(t, StatusNoPrice, rows[1].Status)
	assert.Equal(t, "N/A", rows[1].Status.String())
	assert.Equal(t, StatusNeedsUpdate, rows[2].Status)
}

func TestRowsAgreeWithValuate(t *testing.T) {
	r := date.NewRange(date.MustParse("2024-01-12"), date.MustParse("2024-01-13"))
	p := prices(map[string]map[string]float64{
		"AAA": {"2024-01-12": 100, "2024-01-13": 100},
		"BBB": {"2024-01-12": 10, "2024-01-13": 10},
	})
	holdings := []Holding{stock("AAA", 1, "2024-01-10"), stock("BBB", 5, "2024-01-20")}

	points := Valuate(holdings, p, r)
	rows := Rows(holdings, p, r.To)
	require.Len(t, rows, 2)
	assert.Equal(t, StatusNotOwned, rows[1].Status)
	assert.Zero(t, rows[1].Value)

	var sum float64
	for _, row := range rows {
		sum += row.Value
	}
	assert.Equal(t, TotalValue(points), sum)
}

func TestValuateInvertedRange(t *testing.T) {
	r := date.Range{From: date.MustParse("2024-01-13"), To: date.MustParse("2024-01-10")}
	assert.NotPanics(t, func() {
		assert.Empty(t, Valuate([]Holding{stock("AAA", 1, "2024-01-10")}, NewPriceHistory(), r))
	})
}
