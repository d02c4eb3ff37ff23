package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/membership"
	"github.com/xenking/member-cart/internal/domain/order"
	"github.com/xenking/member-cart/internal/domain/shop"
)

// money writes a decimal as a JSON number with two fraction digits.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeMembership(e *jx.Encoder, mc membership.Context) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("isSubscribed", func(e *jx.Encoder) { e.Bool(mc.IsSubscribed) })
		if mc.BillingInterval != "" {
			e.Field("billingInterval", func(e *jx.Encoder) { e.Str(string(mc.BillingInterval)) })
		}
		e.Field("isLocked", func(e *jx.Encoder) { e.Bool(mc.IsLocked) })
		e.Field("daysUntilUnlock", func(e *jx.Encoder) { e.Int(mc.DaysUntilUnlock) })
	})
}

func encodeOffers(offers []shop.Offer, mc membership.Context) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("membership", func(e *jx.Encoder) { encodeMembership(e, mc) })
		e.Field("offers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range offers {
					e.Obj(func(e *jx.Encoder) {
						e.Field("variantId", func(e *jx.Encoder) { e.Str(o.Item.ID) })
						e.Field("title", func(e *jx.Encoder) { e.Str(o.Item.Title) })
						e.Field("vendor", func(e *jx.Encoder) { e.Str(o.Item.Vendor) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, o.Quote.Regular) })
						e.Field("currencyCode", func(e *jx.Encoder) { e.Str(o.Item.CurrencyCode) })
						e.Field("tier", func(e *jx.Encoder) { e.Str(o.Quote.Tier.String()) })
						if o.Quote.HasMember {
							e.Field("memberPrice", func(e *jx.Encoder) { money(e, o.Quote.Member) })
							e.Field("discountPercent", func(e *jx.Encoder) { e.Int(o.Quote.DiscountPercent) })
						}
					})
				}
			})
		})
	})
	return e.Bytes()
}

func encodeCart(view *shop.CartView, notes []cart.Notification) []byte {
	isMember := view.Membership.IsSubscribed
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range view.Items {
					encodeLineItem(e, it, isMember)
				}
			})
		})
		t := view.Totals
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(t.ItemCount) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, t.Subtotal) })
		e.Field("savings", func(e *jx.Encoder) { money(e, t.Savings) })
		e.Field("shipping", func(e *jx.Encoder) { money(e, t.Shipping) })
		e.Field("grandTotal", func(e *jx.Encoder) { money(e, t.GrandTotal) })
		e.Field("remainingForFreeShipping", func(e *jx.Encoder) { money(e, t.RemainingForFreeShipping) })
		if t.CurrencyCode != "" {
			e.Field("currencyCode", func(e *jx.Encoder) { e.Str(t.CurrencyCode) })
		}
		e.Field("membership", func(e *jx.Encoder) { encodeMembership(e, view.Membership) })
		e.Field("checkout", func(e *jx.Encoder) { encodeCheckoutState(e, view) })
		e.Field("notifications", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, n := range notes {
					e.Obj(func(e *jx.Encoder) {
						e.Field("kind", func(e *jx.Encoder) { e.Str(string(n.Kind)) })
						e.Field("message", func(e *jx.Encoder) { e.Str(n.Message) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

func encodeLineItem(e *jx.Encoder, it cart.LineItem, isMember bool) {
	unit := cart.EffectiveUnitPrice(it, isMember)
	e.Obj(func(e *jx.Encoder) {
		e.Field("variantId", func(e *jx.Encoder) { e.Str(it.VariantID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(it.Item.Title) })
		e.Field("vendor", func(e *jx.Encoder) { e.Str(it.Item.Vendor) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.Item.UnitPrice) })
		e.Field("memberUnitPrice", func(e *jx.Encoder) {
			if !it.MemberUnitPrice.Valid {
				e.Null()
				return
			}
			money(e, it.MemberUnitPrice.Decimal)
		})
		e.Field("effectiveUnitPrice", func(e *jx.Encoder) { money(e, unit) })
		e.Field("lineTotal", func(e *jx.Encoder) {
			money(e, unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
		})
	})
}

func encodeCheckoutState(e *jx.Encoder, view *shop.CartView) {
	st := view.Checkout
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(st.Phase.String()) })
		if view.CartID != "" {
			e.Field("cartId", func(e *jx.Encoder) { e.Str(view.CartID) })
		}
		if view.CheckoutURL != "" {
			e.Field("checkoutUrl", func(e *jx.Encoder) { e.Str(view.CheckoutURL) })
		}
		if st.Err != nil {
			e.Field("error", func(e *jx.Encoder) { e.Str(st.Err.Error()) })
		}
	})
}

func encodeCheckout(res *cart.CheckoutResult) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("checkoutUrl", func(e *jx.Encoder) { e.Str(res.URL) })
		e.Field("cartId", func(e *jx.Encoder) { e.Str(res.CartID) })
		e.Field("redirected", func(e *jx.Encoder) { e.Bool(res.Redirected) })
	})
	return e.Bytes()
}

func encodeOrder(o *order.Order) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("checkoutUrl", func(e *jx.Encoder) { e.Str(o.CheckoutURL) })
		e.Field("isMember", func(e *jx.Encoder) { e.Bool(o.IsMember) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("externalVariantId", func(e *jx.Encoder) { e.Str(l.ExternalVariantID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("savings", func(e *jx.Encoder) { money(e, o.Savings) })
		e.Field("shipping", func(e *jx.Encoder) { money(e, o.Shipping) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		if o.CurrencyCode != "" {
			e.Field("currencyCode", func(e *jx.Encoder) { e.Str(o.CurrencyCode) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}

type itemRequest struct {
	VariantID   string
	Quantity    int
	HasQuantity bool
}

// decodeItemRequest reads {"variantId": string, "quantity": int}. Unknown
// fields are ignored.
func decodeItemRequest(w http.ResponseWriter, r *http.Request) (itemRequest, error) {
	var req itemRequest
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return req, errors.Wrap(err, "read body")
	}
	err = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "variantId":
			v, err := d.Str()
			req.VariantID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity, req.HasQuantity = v, true
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(err, "decode body")
	}
	return req, nil
}
