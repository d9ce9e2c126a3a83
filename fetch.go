package folio

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/etnz/folio/date"
	"github.com/etnz/folio/pacer"
)

// source is a provider and the pacer guarding its quota.
type source struct {
	provider Provider
	pacer    *pacer.Pacer
}

// Fetcher asks providers for prices. Requests to one provider are issued one
// at a time, spaced by its pacer; different providers are queried
// concurrently. A failed request is never retried.
type Fetcher struct {
	sources map[AssetType]source
	log     zerolog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithProvider prices assets of type t with p. A nil pace does not pace.
func WithProvider(t AssetType, p Provider, pace *pacer.Pacer) FetcherOption {
	return func(f *Fetcher) {
		if pace == nil {
			pace = pacer.New(0)
		}
		f.sources[t] = source{provider: p, pacer: pace}
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(log zerolog.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sources: make(map[AssetType]source),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchReport tells what a fetch achieved.
type FetchReport struct {
	Fetched []string         // keys with a successful answer, possibly empty
	Failed  map[string]error // keys whose request failed
	Skipped []string         // keys of a type without provider
}

func (r *FetchReport) fail(key string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[key] = err
}

// FailedKeys returns the keys that failed, in order.
func (r FetchReport) FailedKeys() []string {
	return slices.Sorted(maps.Keys(r.Failed))
}

// Err joins every failure, or returns nil.
func (r FetchReport) Err() error {
	var errs []error
	for _, key := range r.FailedKeys() {
		errs = append(errs, fmt.Errorf("%s: %w", key, r.Failed[key]))
	}
	return errors.Join(errs...)
}

func (r *FetchReport) merge(o FetchReport) {
	r.Fetched = append(r.Fetched, o.Fetched...)
	r.Skipped = append(r.Skipped, o.Skipped...)
	for k, err := range o.Failed {
		r.fail(k, err)
	}
}

// forEachSource runs fn concurrently for every type of keys that has a
// provider, and returns the reports in AssetTypes order.
func (f *Fetcher) forEachSource(keys AssetKeys, fn func(AssetType, source, []string) FetchReport) FetchReport {
	types := keys.Types()
	reports := make([]FetchReport, len(types))
	var wg sync.WaitGroup
	for i, t := range types {
		src, ok := f.sources[t]
		if !ok {
			f.log.Warn().Str("type", string(t)).Strs("keys", keys[t]).Msg("no provider for asset type")
			reports[i].Skipped = keys[t]
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = fn(t, src, keys[t])
		}()
	}
	wg.Wait()

	var report FetchReport
	for _, r := range reports {
		report.merge(r)
	}
	return report
}

// FetchHistories fetches the closes of keys within window into prices.
// A failed key gets an empty series.
func (f *Fetcher) FetchHistories(ctx context.Context, keys AssetKeys, window date.Range, prices *PriceHistory) FetchReport {
	type result struct {
		key    string
		closes map[date.Date]float64
	}
	results := make(map[AssetType][]result)
	var mu sync.Mutex

	report := f.forEachSource(keys, func(t AssetType, src source, keys []string) (report FetchReport) {
		rs := make([]result, 0, len(keys))
		for _, key := range keys {
			closes, err := f.history(ctx, src, key, window)
			if err != nil {
				f.log.Warn().Err(err).Str("provider", src.provider.Name()).Str("key", key).Msg("history fetch failed")
				report.fail(key, err)
			} else {
				report.Fetched = append(report.Fetched, key)
			}
			rs = append(rs, result{key, closes})
		}
		mu.Lock()
		results[t] = rs
		mu.Unlock()
		return report
	})

	for _, t := range keys.Types() {
		for _, r := range results[t] {
			prices.Merge(r.key, r.closes)
		}
	}
	return report
}

func (f *Fetcher) history(ctx context.Context, src source, key string, window date.Range) (map[date.Date]float64, error) {
	if err := src.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	closes, err := src.provider.History(ctx, key, window)
	if err != nil {
		return nil, err
	}
	// Do not trust the provider, only keep the requested days.
	for day := range closes {
		if !window.Contains(day) {
			delete(closes, day)
		}
	}
	f.log.Debug().Str("provider", src.provider.Name()).Str("key", key).Int("days", len(closes)).Msg("history fetched")
	return closes, nil
}

// FetchQuotes fetches the live quotes of keys, with one request per provider.
func (f *Fetcher) FetchQuotes(ctx context.Context, keys AssetKeys) (map[string]Quote, FetchReport) {
	quotes := make(map[string]Quote)
	var mu sync.Mutex

	report := f.forEachSource(keys, func(t AssetType, src source, keys []string) (report FetchReport) {
		qs, err := f.quotes(ctx, src, keys)
		if err != nil {
			f.log.Warn().Err(err).Str("provider", src.provider.Name()).Strs("keys", keys).Msg("quote fetch failed")
			for _, key := range keys {
				report.fail(key, err)
			}
			return report
		}
		mu.Lock()
		defer mu.Unlock()
		for _, key := range keys {
			if q, ok := qs[key]; ok {
				quotes[key] = q
				report.Fetched = append(report.Fetched, key)
			}
		}
		return report
	})
	return quotes, report
}

func (f *Fetcher) quotes(ctx context.Context, src source, keys []string) (map[string]Quote, error) {
	if err := src.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return src.provider.Quotes(ctx, keys)
}
