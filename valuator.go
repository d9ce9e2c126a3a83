package folio

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/etnz/folio/clock"
	"github.com/etnz/folio/date"
)

// State of a Valuator.
type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Snapshot is the published result of a valuation cycle.
type Snapshot struct {
	Period      date.Period   `json:"period"`
	Window      date.Range    `json:"window"`      // displayed days
	FetchWindow date.Range    `json:"fetchWindow"` // fetched days
	TotalValue  float64       `json:"totalValue"`
	Series      []Point       `json:"chartSeries"`
	Prices      *PriceHistory `json:"priceHistory"`
	Rows        []Row         `json:"holdings"`
	Failed      []string      `json:"failed,omitempty"`  // keys whose fetch failed
	Ignored     []string      `json:"ignored,omitempty"` // keys whose live quote was unusable
	Loading     bool          `json:"isLoading"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Event is an input change fed to Valuator.Run.
type Event struct {
	holdings []Holding
	setHold  bool
	period   date.Period
}

// HoldingsChanged replaces the valued holdings.
func HoldingsChanged(holdings []Holding) Event { return Event{holdings: holdings, setHold: true} }

// PeriodChanged replaces the displayed period.
func PeriodChanged(p date.Period) Event { return Event{period: p} }

// Valuator runs valuation cycles, one at a time, and publishes their
// snapshot. A change arriving during a cycle makes the cycle run again once
// it completes instead of starting a concurrent one.
type Valuator struct {
	fetcher   *Fetcher
	clock     clock.Clock
	log       zerolog.Logger
	listeners []func(Snapshot)

	mu       sync.Mutex
	state    State
	inflight bool
	dirty    bool
	holdings []Holding
	period   date.Period
	snapshot Snapshot
}

// ValuatorOption configures a Valuator.
type ValuatorOption func(*Valuator)

// WithClock replaces the system clock, which decides what today is.
func WithClock(c clock.Clock) ValuatorOption {
	return func(v *Valuator) { v.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ValuatorOption {
	return func(v *Valuator) { v.log = log }
}

// WithPeriod sets the initial period, date.Month by default. A period
// shorter than a day is ignored.
func WithPeriod(p date.Period) ValuatorOption {
	return func(v *Valuator) {
		if p >= 1 {
			v.period = p
		}
	}
}

// OnPublish calls fn with every published snapshot.
func OnPublish(fn func(Snapshot)) ValuatorOption {
	return func(v *Valuator) { v.listeners = append(v.listeners, fn) }
}

func NewValuator(f *Fetcher, opts ...ValuatorOption) *Valuator {
	v := &Valuator{
		fetcher: f,
		clock:   clock.System,
		log:     zerolog.Nop(),
		period:  date.Month,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.snapshot = v.empty(v.period)
	return v
}

// SetHoldings replaces the holdings valued by the next cycle.
func (v *Valuator) SetHoldings(holdings []Holding) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.holdings = slices.Clone(holdings)
	v.dirty = true
}

// SetPeriod replaces the period displayed by the next cycle. A period
// shorter than a day is ignored.
func (v *Valuator) SetPeriod(p date.Period) {
	if p < 1 {
		v.log.Warn().Int("period", int(p)).Msg("ignoring invalid period")
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.period = p
	v.dirty = true
}

// Apply records the change carried by e.
func (v *Valuator) Apply(e Event) {
	if e.setHold {
		v.SetHoldings(e.holdings)
	}
	if e.period > 0 {
		v.SetPeriod(e.period)
	}
}

// State returns the current state.
func (v *Valuator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Snapshot returns the last published snapshot.
func (v *Valuator) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.snapshot
	s.Loading = v.state == Loading
	return s
}

// Refresh runs valuation cycles until no change is pending. It returns false
// at once if a cycle is already running: that cycle will run again. It also
// returns false when ctx is done before a cycle completes, in which case the
// previous snapshot stays published.
func (v *Valuator) Refresh(ctx context.Context) bool {
	v.mu.Lock()
	if v.inflight {
		v.dirty = true
		v.mu.Unlock()
		v.log.Debug().Msg("valuation already running, queued")
		return false
	}
	v.inflight = true
	prev := v.state
	v.state = Loading
	v.mu.Unlock()

	s, ok := v.settle(ctx, prev)
	if !ok {
		return false
	}
	for _, fn := range v.listeners {
		fn(s)
	}
	return true
}

// settle runs cycles until the inputs stop changing and stores the last
// snapshot. The in-flight flag is always released, even on panic.
func (v *Valuator) settle(ctx context.Context, prev State) (s Snapshot, ok bool) {
	defer func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.inflight = false
		if ok {
			v.state = Ready
		} else {
			v.state = prev
		}
	}()

	v.mu.Lock()
	for {
		v.dirty = false
		holdings, period := v.holdings, v.period
		if len(holdings) == 0 {
			// nothing to fetch, previous results are obsolete.
			v.snapshot = v.empty(period)
		}
		v.mu.Unlock()

		s = v.cycle(ctx, holdings, period)
		if err := ctx.Err(); err != nil && len(holdings) > 0 {
			v.log.Warn().Err(err).Msg("valuation interrupted, keeping the previous snapshot")
			return s, false
		}

		v.mu.Lock()
		v.snapshot = s
		if !v.dirty {
			v.mu.Unlock()
			return s, true
		}
	}
}

// Run applies events and refreshes until ctx is done or events is closed.
// Events queued during a cycle are coalesced into the next one.
func (v *Valuator) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			v.Apply(e)
			closed := v.drain(events)
			v.Refresh(ctx)
			if closed {
				return nil
			}
		}
	}
}

// drain applies the pending events and reports whether events is closed.
func (v *Valuator) drain(events <-chan Event) bool {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return true
			}
			v.Apply(e)
		default:
			return false
		}
	}
}

func (v *Valuator) empty(p date.Period) Snapshot {
	now := v.clock.Now()
	r := p.Range(date.Of(now))
	return Snapshot{
		Period:      p,
		Window:      r,
		FetchWindow: r,
		Series:      []Point{},
		Prices:      NewPriceHistory(),
		Rows:        []Row{},
		UpdatedAt:   now,
	}
}

// cycle resolves the window, fetches the histories, fills them forward,
// injects the live quotes and aggregates.
func (v *Valuator) cycle(ctx context.Context, holdings []Holding, period date.Period) Snapshot {
	s := v.empty(period)
	window, ok := ResolveWindow(holdings, period, date.Of(s.UpdatedAt))
	if !ok {
		return s
	}
	today := window.To
	s.FetchWindow = window
	keys := KeysOf(holdings)
	log := v.log.With().Str("window", s.FetchWindow.String()).Int("assets", keys.Len()).Logger()
	log.Info().Msg("valuation started")

	report := v.fetcher.FetchHistories(ctx, keys, s.FetchWindow, s.Prices)
	s.Prices.FillForward(s.FetchWindow)

	quotes, qreport := v.fetcher.FetchQuotes(ctx, keys)
	report.merge(qreport)
	s.Ignored = s.Prices.Inject(today, quotes)
	for _, key := range s.Ignored {
		log.Warn().Str("key", key).Msg("ignoring live quote without a valid price")
	}

	s.Series = Valuate(holdings, s.Prices, s.Window)
	s.TotalValue = TotalValue(s.Series)
	s.Rows = Rows(holdings, s.Prices, today)
	s.Failed = report.FailedKeys()
	if err := report.Err(); err != nil {
		log.Warn().Err(err).Msg("some prices could not be fetched")
	}
	log.Info().Float64("total", s.TotalValue).Msg("valuation done")
	return s
}
