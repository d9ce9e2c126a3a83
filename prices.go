package folio

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/etnz/folio/date"
)

// PriceHistory holds a daily price series per asset key.
type PriceHistory struct {
	series map[string]*date.History[float64]
}

// NewPriceHistory returns an empty PriceHistory.
func NewPriceHistory() *PriceHistory {
	return &PriceHistory{series: make(map[string]*date.History[float64])}
}

// validPrice reports whether price can value a holding.
func validPrice(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

func (p *PriceHistory) history(key string) *date.History[float64] {
	h, ok := p.series[key]
	if !ok {
		h = new(date.History[float64])
		p.series[key] = h
	}
	return h
}

// Merge records prices for key, overwriting existing days. The key exists
// afterwards even if prices is empty.
func (p *PriceHistory) Merge(key string, prices map[date.Date]float64) {
	h := p.history(key)
	for day, price := range prices {
		if validPrice(price) {
			h.Append(day, price)
		}
	}
}

// Set records one price.
func (p *PriceHistory) Set(key string, day date.Date, price float64) {
	p.history(key).Append(day, price)
}

// Price returns the price of key on day.
func (p *PriceHistory) Price(key string, day date.Date) (float64, bool) {
	h, ok := p.series[key]
	if !ok {
		return 0, false
	}
	return h.Get(day)
}

// Series returns the series of key.
func (p *PriceHistory) Series(key string) (*date.History[float64], bool) {
	h, ok := p.series[key]
	return h, ok
}

// Keys returns the asset keys in order.
func (p *PriceHistory) Keys() []string {
	keys := make([]string, 0, len(p.series))
	for k := range p.series {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FillForward fills every series over r, see date.History.FillForward.
func (p *PriceHistory) FillForward(r date.Range) {
	for _, h := range p.series {
		h.FillForward(r)
	}
}

// Inject overwrites day with the live quote of every key that has one.
// Quotes without a usable price are ignored and their keys returned.
func (p *PriceHistory) Inject(day date.Date, quotes map[string]Quote) (ignored []string) {
	for key, q := range quotes {
		if !validPrice(q.Price) {
			ignored = append(ignored, key)
			continue
		}
		p.Set(key, day, q.Price)
	}
	slices.Sort(ignored)
	return ignored
}

// MarshalJSON encodes the history as {"key": {"2024-01-02": 100}}.
func (p *PriceHistory) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.series)
}
