package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/product"
)

// Persister stores serialized ledgers under a session key.
type Persister interface {
	// Load returns (nil, nil) when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// snapshot is the stored shape of a ledger.
type snapshot struct {
	Items       []snapshotItem `json:"items"`
	CartID      string         `json:"cartId,omitempty"`
	CheckoutURL string         `json:"checkoutUrl,omitempty"`
}

type snapshotItem struct {
	VariantID         string               `json:"variantId"`
	ExternalVariantID string               `json:"externalVariantId,omitempty"`
	Title             string               `json:"title"`
	Vendor            string               `json:"vendor,omitempty"`
	TierHint          string               `json:"tierHint,omitempty"`
	UnitPrice         decimal.Decimal      `json:"unitPrice"`
	CurrencyCode      string               `json:"currencyCode"`
	Quantity          int                  `json:"quantity"`
	MemberUnitPrice   *decimal.NullDecimal `json:"memberUnitPrice,omitempty"`
}

func encodeSnapshot(items []LineItem, cartID, checkoutURL string) ([]byte, error) {
	s := snapshot{
		Items:       make([]snapshotItem, len(items)),
		CartID:      cartID,
		CheckoutURL: checkoutURL,
	}
	for i, it := range items {
		si := snapshotItem{
			VariantID:         it.VariantID,
			ExternalVariantID: it.Item.ExternalVariantID,
			Title:             it.Item.Title,
			Vendor:            it.Item.Vendor,
			TierHint:          it.Item.TierHint,
			UnitPrice:         it.Item.UnitPrice,
			CurrencyCode:      it.Item.CurrencyCode,
			Quantity:          it.Quantity,
		}
		if it.MemberUnitPrice.Valid {
			mp := it.MemberUnitPrice
			si.MemberUnitPrice = &mp
		}
		s.Items[i] = si
	}
	return json.Marshal(s)
}

// decodeSnapshot restores a ledger. Any shape problem is reported as an
// error so the caller can fall back to an empty cart.
func decodeSnapshot(data []byte) (*snapshot, []LineItem, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshal snapshot")
	}
	items := make([]LineItem, 0, len(s.Items))
	for _, si := range s.Items {
		if si.VariantID == "" || si.Quantity < 1 || si.Quantity > MaxLineQuantity || si.UnitPrice.IsNegative() {
			return nil, nil, errors.Errorf("invalid stored item %q", si.VariantID)
		}
		if indexOf(items, si.VariantID) >= 0 {
			return nil, nil, errors.Errorf("duplicate stored item %q", si.VariantID)
		}
		li := LineItem{
			VariantID: si.VariantID,
			Item: product.Item{
				ID:                si.VariantID,
				ExternalVariantID: si.ExternalVariantID,
				Title:             si.Title,
				Vendor:            si.Vendor,
				TierHint:          si.TierHint,
				UnitPrice:         si.UnitPrice,
				CurrencyCode:      si.CurrencyCode,
			},
			Quantity: si.Quantity,
		}
		if si.MemberUnitPrice != nil {
			li.MemberUnitPrice = *si.MemberUnitPrice
		}
		items = append(items, li)
	}
	return &s, items, nil
}

// MemoryPersister keeps snapshots in process memory.
type MemoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

// Load implements Persister.
func (m *MemoryPersister) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Save implements Persister.
func (m *MemoryPersister) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
