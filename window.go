package folio

import (
	"slices"

	"github.com/etnz/folio/date"
)

// ResolveWindow returns the days to fetch to value holdings over period up
// to today: the display window, extended back to the earliest purchase so
// that the price known at purchase can be carried forward. The window never
// ends after today. There is no window without holdings.
func ResolveWindow(holdings []Holding, period date.Period, today date.Date) (date.Range, bool) {
	if len(holdings) == 0 {
		return date.Range{}, false
	}
	r := period.Range(today)
	for _, h := range holdings {
		r.From = date.Min(r.From, h.PurchaseDay())
	}
	return r, true
}

// AssetKeys groups distinct asset keys by type.
type AssetKeys map[AssetType][]string

// KeysOf returns the sorted distinct keys of the resolvable holdings.
func KeysOf(holdings []Holding) AssetKeys {
	keys := make(AssetKeys)
	for _, h := range holdings {
		if !h.Resolvable() {
			continue
		}
		if !slices.Contains(keys[h.Type], h.AssetKey) {
			keys[h.Type] = append(keys[h.Type], h.AssetKey)
		}
	}
	for _, k := range keys {
		slices.Sort(k)
	}
	return keys
}

// Len returns the number of keys.
func (k AssetKeys) Len() int {
	n := 0
	for _, keys := range k {
		n += len(keys)
	}
	return n
}

// Types returns the types with at least one key, in AssetTypes order.
func (k AssetKeys) Types() []AssetType {
	var types []AssetType
	for _, t := range AssetTypes {
		if len(k[t]) > 0 {
			types = append(types, t)
		}
	}
	return types
}
