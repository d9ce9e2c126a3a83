package folio

import (
	"encoding/json"

	"github.com/etnz/folio/date"
)

// PriceLookup returns the price of an asset on a day.
type PriceLookup interface {
	Price(key string, day date.Date) (float64, bool)
}

// Point is the total portfolio value on a day. Known is false until some
// holding could be priced on or before Day.
type Point struct {
	Day   date.Date
	Value float64
	Known bool
}

// MarshalJSON encodes an unknown value as null.
func (p Point) MarshalJSON() ([]byte, error) {
	var v *float64
	if p.Known {
		v = &p.Value
	}
	return json.Marshal(struct {
		Day        date.Date `json:"day"`
		TotalValue *float64  `json:"totalValue"`
	}{p.Day, v})
}

// Valuate returns one point per day of r. A day where no holding has a price
// repeats the previous known total.
func Valuate(holdings []Holding, prices PriceLookup, r date.Range) []Point {
	points := make([]Point, 0, max(r.Len(), 0))
	var last Point
	for day := range r.Days() {
		total, priced := 0.0, 0
		for _, h := range holdings {
			if h.PurchaseDay().After(day) || !h.Resolvable() {
				continue
			}
			price, ok := prices.Price(h.AssetKey, day)
			if !ok {
				continue
			}
			total += h.Quantity.Float() * price
			priced++
		}
		p := Point{Day: day}
		switch {
		case priced > 0:
			p.Value, p.Known = total, true
			last = p
		case last.Known:
			p.Value, p.Known = last.Value, true
		}
		points = append(points, p)
	}
	return points
}

// TotalValue returns the value of the last known point, or 0.
func TotalValue(points []Point) float64 {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Known {
			return points[i].Value
		}
	}
	return 0
}

// Status tells whether a Row could be valued.
type Status int

const (
	StatusOK          Status = iota
	StatusNoPrice            // no price known for the day
	StatusNeedsUpdate        // the holding cannot be priced, its asset key must be fixed
	StatusNotOwned           // purchased after the day
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoPrice:
		return "N/A"
	case StatusNeedsUpdate:
		return "needs update"
	case StatusNotOwned:
		return "not owned yet"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Row is the valuation of one holding on a day.
type Row struct {
	Holding Holding `json:"holding"`
	Status  Status  `json:"status"`
	Price   float64 `json:"price,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Cost    float64 `json:"cost,omitempty"` // 0 if the purchase price is unknown
	Gain    float64 `json:"gain,omitempty"` // Value - Cost, when both are known
}

// HasGain reports whether both the value and the cost are known.
func (r Row) HasGain() bool { return r.Status == StatusOK && r.Cost > 0 }

// Rows values each holding on day. Like Valuate, a holding purchased after
// day has no value.
func Rows(holdings []Holding, prices PriceLookup, day date.Date) []Row {
	rows := make([]Row, 0, len(holdings))
	for _, h := range holdings {
		row := Row{Holding: h}
		row.Cost, _ = h.Cost()
		switch price, ok := prices.Price(h.AssetKey, day); {
		case !h.Resolvable():
			row.Status = StatusNeedsUpdate
		case h.PurchaseDay().After(day):
			row.Status = StatusNotOwned
		case !ok:
			row.Status = StatusNoPrice
		default:
			row.Price = price
			row.Value = h.Quantity.Float() * price
			if row.Cost > 0 {
				row.Gain = row.Value - row.Cost
			}
		}
		rows = append(rows, row)
	}
	return rows
}
