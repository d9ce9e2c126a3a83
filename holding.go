package folio

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/etnz/folio/date"
)

// AssetType tells which provider family prices an asset.
type AssetType string

const (
	Crypto AssetType = "crypto"
	Stock  AssetType = "stock"
)

// AssetTypes lists the known asset types in a stable order.
var AssetTypes = []AssetType{Crypto, Stock}

// ParseAssetType parses "crypto" or "stock".
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(AssetTypes, t) {
		return "", fmt.Errorf("unknown asset type %q, want crypto or stock", s)
	}
	return t, nil
}

var (
	// ErrInvalidHolding is wrapped by every Validate failure.
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrOversell is returned when reducing a holding by more than it holds.
	ErrOversell = errors.New("cannot sell more than held")
)

var (
	coinID      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	stockSymbol = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)
)

// Holding is a quantity of one asset bought at some point in time.
type Holding struct {
	ID       string    `json:"id"`
	Type     AssetType `json:"type"`
	AssetKey string    `json:"asset_key,omitempty"` // coin id or ticker symbol
	Quantity Quantity  `json:"quantity"`
	// Purchased is the purchase instant; only its UTC day matters.
	Purchased     time.Time `json:"purchased"`
	PurchasePrice float64   `json:"purchase_price,omitempty"` // per unit, 0 if unknown
	Note          string    `json:"note,omitempty"`
}

// PurchaseDay returns the UTC calendar day of purchase.
func (h Holding) PurchaseDay() date.Date { return date.Of(h.Purchased) }

// Resolvable reports whether the holding can be priced: it needs a known
// type and an asset key.
func (h Holding) Resolvable() bool {
	return slices.Contains(AssetTypes, h.Type) && strings.TrimSpace(h.AssetKey) != ""
}

// Normalize returns h with its asset key in canonical form: lower case coin
// ids and upper case ticker symbols.
func (h Holding) Normalize() Holding {
	h.AssetKey = strings.TrimSpace(h.AssetKey)
	switch h.Type {
	case Crypto:
		h.AssetKey = strings.ToLower(h.AssetKey)
	case Stock:
		h.AssetKey = strings.ToUpper(h.AssetKey)
	}
	h.Note = strings.TrimSpace(h.Note)
	return h
}

// Validate checks a normalized holding.
func (h Holding) Validate() error {
	switch h.Type {
	case Crypto:
		if !coinID.MatchString(h.AssetKey) {
			return fmt.Errorf("%w: coin id %q must be lower case letters, digits and dashes", ErrInvalidHolding, h.AssetKey)
		}
	case Stock:
		if !stockSymbol.MatchString(h.AssetKey) {
			return fmt.Errorf("%w: ticker %q must be upper case letters, digits, dots and dashes", ErrInvalidHolding, h.AssetKey)
		}
	default:
		return fmt.Errorf("%w: unknown asset type %q", ErrInvalidHolding, h.Type)
	}
	if !h.Quantity.IsPositive() || h.Quantity.IsDust() {
		return fmt.Errorf("%w: quantity %v must be positive", ErrInvalidHolding, h.Quantity)
	}
	if h.Purchased.IsZero() {
		return fmt.Errorf("%w: missing purchase date", ErrInvalidHolding)
	}
	if h.PurchasePrice < 0 {
		return fmt.Errorf("%w: negative purchase price %v", ErrInvalidHolding, h.PurchasePrice)
	}
	return nil
}

// Reduce removes quantity q from the holding. It returns the remaining
// holding and whether the remainder is dust, in which case the holding
// should be deleted.
func (h Holding) Reduce(q Quantity) (Holding, bool, error) {
	if !q.IsPositive() {
		return h, false, fmt.Errorf("%w: quantity to sell %v must be positive", ErrInvalidHolding, q)
	}
	remaining := h.Quantity.Sub(q)
	if remaining.IsNegative() && !remaining.IsDust() {
		return h, false, fmt.Errorf("%w: selling %v out of %v", ErrOversell, q, h.Quantity)
	}
	if remaining.IsDust() {
		h.Quantity = Quantity{}
		return h, true, nil
	}
	h.Quantity = remaining
	return h, false, nil
}

// Cost returns what the holding cost, if its purchase price is known.
func (h Holding) Cost() (float64, bool) {
	if h.PurchasePrice <= 0 {
		return 0, false
	}
	return h.Quantity.Float() * h.PurchasePrice, true
}
