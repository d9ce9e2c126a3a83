// Package folio values a multi-asset portfolio (cryptocurrencies and stocks)
// over time from sparse, rate-limited price providers.
//
// The core is a valuation cycle run by a [Valuator] each time the holdings or
// the displayed period change:
//   - Window resolution: [ResolveWindow] computes the smallest range of days
//     to fetch, reaching back to the earliest purchase.
//   - History fetching: a [Fetcher] asks each provider for daily closes, one
//     asset at a time and paced per provider, tolerating failures.
//   - Fill-forward: a [PriceHistory] carries each last known price over days
//     without data (weekends, holidays, provider gaps).
//   - Live injection: today's entry of each series is replaced by the live
//     quote, since historical providers usually lag a day.
//   - Aggregation: [Valuate] sums quantity × price per day and carries the
//     whole portfolio total forward over days without any data.
//
// Every date comparison goes through calendar days from package date, never
// through raw instants.
package folio
