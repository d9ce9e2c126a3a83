package renderer

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
)

// BaseCurrency is the currency providers quote in when FX.Base is empty.
const BaseCurrency = "USD"

// FX converts from the currency providers quote in to the display currency
// with a fixed rate.
type FX struct {
	Base     string  // currency of the valuation, BaseCurrency if empty
	Currency string  // display currency, Base if empty
	Rate     float64 // display currency units per Base unit
}

func (fx FX) money(v float64) folio.Money {
	base := strings.ToUpper(fx.Base)
	if base == "" {
		base = BaseCurrency
	}
	m := folio.M(v, base)
	if fx.Currency == "" || fx.Rate <= 0 {
		return m
	}
	return m.Convert(fx.Rate, strings.ToUpper(fx.Currency))
}

// Portfolio is the view of a folio.Snapshot rendered by the reports.
type Portfolio struct {
	User      string
	AsOf      date.Date
	UpdatedAt time.Time
	Period    date.Period
	Window    date.Range
	Total     folio.Money
	Change    folio.Money // total minus the first known value of the window
	High, Low folio.Money
	Cost      folio.Money // sum of the known purchase costs
	Gain      folio.Money // sum of the known gains
	Rows      []Row
	Failed    []string
	Series    []folio.Point

	fx FX
}

// Row is one holding line.
type Row struct {
	ID       string
	Type     folio.AssetType
	Key      string
	Quantity folio.Quantity
	Price    folio.Money
	Value    folio.Money
	Gain     folio.Money
	HasGain  bool
	Status   folio.Status
	Note     string
}

// IsOK reports whether the row has a value.
func (r Row) IsOK() bool { return r.Status == folio.StatusOK }

// NeedsUpdate reports whether the holding asset key must be fixed.
func (r Row) NeedsUpdate() bool { return r.Status == folio.StatusNeedsUpdate }

// NewPortfolio builds the view of s for user, converted with fx.
func NewPortfolio(user string, s folio.Snapshot, fx FX) *Portfolio {
	p := &Portfolio{
		User:      user,
		AsOf:      s.Window.To,
		UpdatedAt: s.UpdatedAt,
		Period:    s.Period,
		Window:    s.Window,
		Total:     fx.money(s.TotalValue),
		Change:    fx.money(0),
		High:      fx.money(0),
		Low:       fx.money(0),
		Failed:    s.Failed,
		Series:    s.Series,
		fx:        fx,
	}

	var known []float64
	for _, pt := range s.Series {
		if pt.Known {
			known = append(known, pt.Value)
		}
	}
	if len(known) > 0 {
		p.High = fx.money(floats.Max(known))
		p.Low = fx.money(floats.Min(known))
		p.Change = fx.money(s.TotalValue - known[0])
	}

	var cost, gain float64
	for _, r := range s.Rows {
		row := Row{
			ID:       r.Holding.ID,
			Type:     r.Holding.Type,
			Key:      r.Holding.AssetKey,
			Quantity: r.Holding.Quantity,
			Price:    fx.money(r.Price),
			Value:    fx.money(r.Value),
			Gain:     fx.money(r.Gain),
			HasGain:  r.HasGain(),
			Status:   r.Status,
			Note:     r.Holding.Note,
		}
		if row.HasGain {
			cost += r.Cost
			gain += r.Gain
		}
		p.Rows = append(p.Rows, row)
	}
	p.Cost = fx.money(cost)
	p.Gain = fx.money(gain)
	return p
}

// Currency returns the display currency.
func (p *Portfolio) Currency() string { return p.Total.Currency() }

// Values returns the known values of the series, in the display currency,
// and their days.
func (p *Portfolio) Values() ([]time.Time, []float64) {
	var xs []time.Time
	var ys []float64
	for _, pt := range p.Series {
		if pt.Known {
			xs = append(xs, pt.Day.Time())
			ys = append(ys, p.fx.money(pt.Value).Float())
		}
	}
	return xs, ys
}
