package inventory

import (
	"context"
	"sort"

	"github.com/roach88/ndomog/internal/model"
)

// Stats summarizes the active inventory.
type Stats struct {
	Items        int     `json:"items"`
	Units        int     `json:"units"`
	BuyingValue  float64 `json:"buying_value"`
	SellingValue float64 `json:"selling_value"`
	LowStock     int     `json:"low_stock"`
	OutOfStock   int     `json:"out_of_stock"`
	Categories   int     `json:"categories"`
	PendingCount int     `json:"pending"`
}

// PotentialProfit is the selling value minus the buying value.
func (s Stats) PotentialProfit() float64 {
	return s.SellingValue - s.BuyingValue
}

// LowStock returns active items at or below their threshold, emptiest
// first, ties broken by name.
func (s *Service) LowStock(ctx context.Context) ([]model.Item, error) {
	items, err := s.cache.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}

	var low []model.Item
	for _, item := range items {
		if item.LowStock() {
			low = append(low, item)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		if low[i].Quantity != low[j].Quantity {
			return low[i].Quantity < low[j].Quantity
		}
		return low[i].Name < low[j].Name
	})
	return low, nil
}

// Stats computes inventory totals over active items.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	items, err := s.cache.ListActiveItems(ctx)
	if err != nil {
		return Stats{}, err
	}
	cats, err := s.cache.ListCategories(ctx)
	if err != nil {
		return Stats{}, err
	}
	pending, err := s.outbox.PendingCount(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Items: len(items), Categories: len(cats), PendingCount: pending}
	for _, item := range items {
		st.Units += item.Quantity
		st.BuyingValue += item.BuyingPrice * float64(item.Quantity)
		st.SellingValue += item.SellingPrice * float64(item.Quantity)
		if item.LowStock() {
			st.LowStock++
		}
		if item.Quantity == 0 {
			st.OutOfStock++
		}
	}
	return st, nil
}
