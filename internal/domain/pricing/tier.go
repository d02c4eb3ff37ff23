package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Tier is a named pricing bucket with a fixed regular/member price pair.
type Tier uint8

const (
	// TierNone marks items without member pricing.
	TierNone Tier = iota
	Tier250ml
	Tier100ml
	TierCards
	TierClips
)

// String returns the display name of the tier.
func (t Tier) String() string {
	switch t {
	case Tier250ml:
		return "250ml"
	case Tier100ml:
		return "100ml"
	case TierCards:
		return "Cards"
	case TierClips:
		return "Clips"
	default:
		return "none"
	}
}

// ParseTier maps structured catalog metadata to a Tier. Matching is
// case-insensitive; unknown values report false.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "250ml":
		return Tier250ml, true
	case "100ml":
		return Tier100ml, true
	case "cards":
		return TierCards, true
	case "clips":
		return TierClips, true
	default:
		return TierNone, false
	}
}

// TierPrice is one row of the fixed tier table. DiscountPercent is kept for
// display ("save 30%"); the resolver only reads Member.
type TierPrice struct {
	Regular         decimal.Decimal
	Member          decimal.Decimal
	DiscountPercent int
}

// Tiers is the fixed member price table.
var Tiers = map[Tier]TierPrice{
	Tier250ml: {Regular: decimal.NewFromInt(149), Member: decimal.NewFromInt(99), DiscountPercent: 34},
	Tier100ml: {Regular: decimal.NewFromInt(79), Member: decimal.NewFromInt(55), DiscountPercent: 30},
	TierCards: {Regular: decimal.NewFromInt(15), Member: decimal.NewFromInt(10), DiscountPercent: 33},
	TierClips: {Regular: decimal.NewFromInt(25), Member: decimal.NewFromInt(17), DiscountPercent: 32},
}

var hundred = decimal.NewFromInt(100)

// ValidateTable checks that every member price undercuts its regular price
// and that the advertised discount matches the price pair.
func ValidateTable(table map[Tier]TierPrice) error {
	for tier, p := range table {
		if !p.Member.IsPositive() {
			return errors.Errorf("tier %s: member price must be positive", tier)
		}
		if !p.Member.LessThan(p.Regular) {
			return errors.Errorf("tier %s: member price %s is not below regular price %s", tier, p.Member, p.Regular)
		}
		pct := p.Regular.Sub(p.Member).Mul(hundred).Div(p.Regular).Round(0)
		if pct.IntPart() != int64(p.DiscountPercent) {
			return errors.Errorf("tier %s: discount %d%% does not match prices (%s%%)", tier, p.DiscountPercent, pct)
		}
	}
	return nil
}
