package advisor

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/etnz/folio/renderer"
)

// Stats summarizes a portfolio value series and its composition.
type Stats struct {
	Days       int     // number of valued days
	Return     float64 // last over first valued day, minus one
	Volatility float64 // standard deviation of the daily returns
	Drawdown   float64 // largest peak to trough loss, as a positive fraction
	Largest    string  // asset key of the largest valued holding
	Weight     float64 // share of the total held by Largest
	Unvalued   int     // holdings without a value
}

// Analyze computes the Stats of p.
func Analyze(p *renderer.Portfolio) Stats {
	var s Stats
	_, values := p.Values()
	s.Days = len(values)
	if len(values) >= 2 && values[0] > 0 {
		s.Return = values[len(values)-1]/values[0] - 1

		returns := make([]float64, 0, len(values)-1)
		for i := 1; i < len(values); i++ {
			if values[i-1] > 0 {
				returns = append(returns, values[i]/values[i-1]-1)
			}
		}
		if len(returns) >= 2 {
			s.Volatility = stat.StdDev(returns, nil)
		}

		peak := values[0]
		for _, v := range values {
			peak = max(peak, v)
			if peak > 0 {
				s.Drawdown = max(s.Drawdown, (peak-v)/peak)
			}
		}
	}

	var keys []string
	var weights []float64
	for _, r := range p.Rows {
		if !r.IsOK() {
			s.Unvalued++
			continue
		}
		keys = append(keys, r.Key)
		weights = append(weights, r.Value.Float())
	}
	if total := floats.Sum(weights); total > 0 {
		i := floats.MaxIdx(weights)
		s.Largest = keys[i]
		s.Weight = weights[i] / total
	}
	return s
}
