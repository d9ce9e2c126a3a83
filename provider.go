package folio

import (
	"context"
	"time"

	"github.com/etnz/folio/date"
)

// Quote is a live price of an asset.
type Quote struct {
	AssetKey string    `json:"asset_key"`
	Price    float64   `json:"price"`
	AsOf     time.Time `json:"as_of"`
}

// HistoryProvider returns daily closing prices.
type HistoryProvider interface {
	// History returns the closes of key for days within r. Days without a
	// close are absent. An unknown key is an error.
	History(ctx context.Context, key string, r date.Range) (map[date.Date]float64, error)
}

// QuoteProvider returns live prices.
type QuoteProvider interface {
	// Quotes returns the live price of each key it knows. Unknown keys are
	// absent from the result.
	Quotes(ctx context.Context, keys []string) (map[string]Quote, error)
}

// Provider prices one AssetType.
type Provider interface {
	Name() string
	HistoryProvider
	QuoteProvider
}
