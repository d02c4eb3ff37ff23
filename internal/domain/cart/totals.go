package cart

import (
	"github.com/shopspring/decimal"
)

var zero = decimal.Zero

// ShippingPolicy holds the free-shipping threshold and the flat rate charged
// below it.
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatRate      decimal.Decimal
}

// DefaultShippingPolicy is used when no policy is configured.
var DefaultShippingPolicy = ShippingPolicy{
	FreeThreshold: decimal.NewFromInt(100),
	FlatRate:      decimal.RequireFromString("9.95"),
}

// Totals is every derived aggregate of a ledger for one viewer.
type Totals struct {
	ItemCount                int
	Subtotal                 decimal.Decimal
	Savings                  decimal.Decimal
	Shipping                 decimal.Decimal
	GrandTotal               decimal.Decimal
	RemainingForFreeShipping decimal.Decimal
	CurrencyCode             string
}

// ItemCount returns the sum of quantities.
func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// EffectiveUnitPrice is the member unit price for members when one exists,
// the regular unit price otherwise.
func EffectiveUnitPrice(item LineItem, isMember bool) decimal.Decimal {
	if isMember && item.MemberUnitPrice.Valid {
		return item.MemberUnitPrice.Decimal
	}
	return item.Item.UnitPrice
}

// Subtotal returns the sum of effective unit price times quantity.
func Subtotal(items []LineItem, isMember bool) decimal.Decimal {
	sum := zero
	for _, it := range items {
		sum = sum.Add(EffectiveUnitPrice(it, isMember).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Savings returns what a member saves over regular prices. Non-members
// always save zero.
func Savings(items []LineItem, isMember bool) decimal.Decimal {
	if !isMember {
		return zero
	}
	sum := zero
	for _, it := range items {
		if !it.MemberUnitPrice.Valid {
			continue
		}
		diff := it.Item.UnitPrice.Sub(it.MemberUnitPrice.Decimal)
		sum = sum.Add(diff.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// ShippingCost is zero once the subtotal reaches the free threshold and the
// flat rate otherwise.
func (p ShippingPolicy) ShippingCost(items []LineItem, isMember bool) decimal.Decimal {
	if Subtotal(items, isMember).GreaterThanOrEqual(p.FreeThreshold) {
		return zero
	}
	return p.FlatRate
}

// GrandTotal is subtotal plus shipping.
func (p ShippingPolicy) GrandTotal(items []LineItem, isMember bool) decimal.Decimal {
	return Subtotal(items, isMember).Add(p.ShippingCost(items, isMember))
}

// RemainingForFreeShipping is the amount left to spend before shipping
// becomes free, floored at zero.
func (p ShippingPolicy) RemainingForFreeShipping(items []LineItem, isMember bool) decimal.Decimal {
	left := p.FreeThreshold.Sub(Subtotal(items, isMember))
	if left.IsNegative() {
		return zero
	}
	return left
}

// Summarize computes all aggregates in one pass over the policy.
func (p ShippingPolicy) Summarize(items []LineItem, isMember bool) Totals {
	t := Totals{
		ItemCount:                ItemCount(items),
		Subtotal:                 Subtotal(items, isMember),
		Savings:                  Savings(items, isMember),
		Shipping:                 p.ShippingCost(items, isMember),
		RemainingForFreeShipping: p.RemainingForFreeShipping(items, isMember),
	}
	t.GrandTotal = t.Subtotal.Add(t.Shipping)
	if len(items) > 0 {
		t.CurrencyCode = items[0].Item.CurrencyCode
	}
	return t
}
