// Package pricing decides which catalog items carry a member price and what
// that price is. Member prices are only ever looked up from the fixed tier
// table; nothing here computes a percentage discount on the fly.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/product"
)

// EligibleVendor is the only vendor whose items receive member pricing.
const EligibleVendor = "VAPE HEAD"

// titleRules are evaluated in order; the first rule with a matching keyword wins.
var titleRules = []struct {
	tier     Tier
	keywords []string
}{
	{Tier250ml, []string{"250ml", "collector"}},
	{Tier100ml, []string{"100ml", "disc"}},
	{TierCards, []string{"cards", "freshener"}},
	{TierClips, []string{"clips", "vent"}},
}

// IsEligibleVendor reports whether items from vendor may carry member pricing.
func IsEligibleVendor(vendor string) bool {
	return strings.ToUpper(strings.TrimSpace(vendor)) == EligibleVendor
}

// ClassifyTitle infers the tier from title keywords.
func ClassifyTitle(title string) Tier {
	lower := strings.ToLower(title)
	for _, rule := range titleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tier
			}
		}
	}
	return TierNone
}

// Classify prefers structured tier metadata and falls back to the title
// heuristic when the hint is empty or unknown.
func Classify(hint, title string) Tier {
	if t, ok := ParseTier(hint); ok {
		return t
	}
	return ClassifyTitle(title)
}

// ResolveMemberPrice returns the member price for an item described by its
// title and vendor. The second result is false when no member price applies:
// ineligible vendor, no matching tier, or a table price that does not
// undercut regular.
func ResolveMemberPrice(title, vendor string, regular decimal.Decimal) (decimal.Decimal, bool) {
	if !IsEligibleVendor(vendor) {
		return decimal.Decimal{}, false
	}
	return memberPrice(ClassifyTitle(title), regular)
}

func memberPrice(tier Tier, regular decimal.Decimal) (decimal.Decimal, bool) {
	p, ok := Tiers[tier]
	if !ok {
		return decimal.Decimal{}, false
	}
	if !p.Member.LessThan(regular) {
		return decimal.Decimal{}, false
	}
	return p.Member, true
}

// Quote is the price disclosure for a catalog item.
type Quote struct {
	Tier            Tier
	Regular         decimal.Decimal
	Member          decimal.Decimal
	HasMember       bool
	DiscountPercent int
}

// Resolve quotes a catalog item. Structured tier metadata on the item takes
// precedence over title keywords.
func Resolve(item product.Item) Quote {
	q := Quote{Regular: item.UnitPrice}
	if !IsEligibleVendor(item.Vendor) {
		return q
	}
	q.Tier = Classify(item.TierHint, item.Title)
	member, ok := memberPrice(q.Tier, item.UnitPrice)
	if !ok {
		return q
	}
	q.Member = member
	q.HasMember = true
	q.DiscountPercent = Tiers[q.Tier].DiscountPercent
	return q
}

// MemberUnitPrice returns the quote's member price as a nullable decimal,
// the shape stored on cart line items.
func (q Quote) MemberUnitPrice() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: q.Member, Valid: q.HasMember}
}
