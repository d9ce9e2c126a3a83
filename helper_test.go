package folio

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/etnz/folio/date"
)

// fakeProvider serves canned prices and records the calls it receives.
type fakeProvider struct {
	name       string
	histories  map[string]map[date.Date]float64
	quotes     map[string]float64
	historyErr map[string]error
	quoteErr   error

	entered chan string   // receives the key of each History call if not nil
	gate    chan struct{} // History waits for it to be closed if not nil

	mu      sync.Mutex
	calls   []string
	windows []date.Range
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) History(ctx context.Context, key string, r date.Range) (map[date.Date]float64, error) {
	p.mu.Lock()
	p.calls = append(p.calls, "history:"+key)
	p.windows = append(p.windows, r)
	p.mu.Unlock()
	if p.entered != nil {
		p.entered <- key
	}
	if p.gate != nil {
		<-p.gate
	}
	if err := p.historyErr[key]; err != nil {
		return nil, err
	}
	h, ok := p.histories[key]
	if !ok {
		return nil, errors.New("unknown asset " + key)
	}
	return maps.Clone(h), nil
}

func (p *fakeProvider) Quotes(ctx context.Context, keys []string) (map[string]Quote, error) {
	p.mu.Lock()
	p.calls = append(p.calls, "quotes")
	p.mu.Unlock()
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}
	quotes := make(map[string]Quote)
	for _, key := range keys {
		if price, ok := p.quotes[key]; ok {
			quotes[key] = Quote{AssetKey: key, Price: price, AsOf: time.Now()}
		}
	}
	return quotes, nil
}

func (p *fakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// stock returns a stock holding of quantity key bought on day.
func stock(key string, quantity float64, day string) Holding {
	return Holding{Type: Stock, AssetKey: key, Quantity: Q(quantity), Purchased: date.MustParse(day).Time()}
}

func coin(key string, quantity float64, day string) Holding {
	return Holding{Type: Crypto, AssetKey: key, Quantity: Q(quantity), Purchased: date.MustParse(day).Time()}
}

// prices builds a PriceHistory from day strings.
func prices(series map[string]map[string]float64) *PriceHistory {
	p := NewPriceHistory()
	for key, s := range series {
		p.Merge(key, days(s))
	}
	return p
}

func days(s map[string]float64) map[date.Date]float64 {
	m := make(map[date.Date]float64, len(s))
	for d, v := range s {
		m[date.MustParse(d)] = v
	}
	return m
}

func values(points []Point) []any {
	var v []any
	for _, p := range points {
		if p.Known {
			v = append(v, p.Value)
		} else {
			v = append(v, nil)
		}
	}
	return v
}
