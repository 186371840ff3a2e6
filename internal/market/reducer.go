// Package market reduces a raw sell-order snapshot to one canonical quote
// per (item, hub) pair: the lowest offered price plus the depth of supply
// available within a fixed margin above it.
package market

import (
	"sort"

	"github.com/rs/zerolog"

	"hubtrade/internal/model"
)

type groupKey struct {
	itemID int64
	hubID  int64
}

// Reducer turns raw sell orders into per-(item, hub) quotes.
type Reducer struct {
	logger      zerolog.Logger
	hubs        map[int64]bool
	depthMargin float64
}

// NewReducer creates a Reducer for the given hub set. depthMargin is the
// fractional band above the lowest price that still counts toward supply
// (0.10 means orders up to 10% above the minimum).
func NewReducer(logger zerolog.Logger, hubs map[int64]bool, depthMargin float64) *Reducer {
	return &Reducer{
		logger:      logger,
		hubs:        hubs,
		depthMargin: depthMargin,
	}
}

// Reduce produces one Quote per (item, hub) pair for every item offered at
// two or more distinct hubs. Buy orders, orders outside the configured hub
// set and orders with a non-positive price or negative quantity are
// skipped; the filter is safe to apply to pre-filtered input. Empty input
// yields empty output.
//
// When several orders share the exact minimum price, the first one in
// input order is the headline order; its quantity becomes the quote's
// Remaining. Output is sorted by (item_id, hub_id).
func (r *Reducer) Reduce(orders []model.RawOrder) []model.Quote {
	groups := make(map[groupKey][]model.RawOrder)
	itemHubs := make(map[int64]map[int64]bool)
	var skipped, malformed int

	for _, o := range orders {
		if o.IsBuy || !r.hubs[o.HubID] {
			skipped++
			continue
		}
		if o.Price <= 0 || o.Remaining < 0 {
			malformed++
			continue
		}
		key := groupKey{itemID: o.ItemID, hubID: o.HubID}
		groups[key] = append(groups[key], o)
		if itemHubs[o.ItemID] == nil {
			itemHubs[o.ItemID] = make(map[int64]bool)
		}
		itemHubs[o.ItemID][o.HubID] = true
	}

	if malformed > 0 {
		r.logger.Warn().Int("rows", malformed).Msg("skipped malformed orders")
	}

	quotes := make([]model.Quote, 0, len(groups))
	for key, group := range groups {
		// Items present at a single hub cannot form a trade pair.
		if len(itemHubs[key.itemID]) < 2 {
			continue
		}
		quotes = append(quotes, r.reduceGroup(key, group))
	}

	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].ItemID != quotes[j].ItemID {
			return quotes[i].ItemID < quotes[j].ItemID
		}
		return quotes[i].HubID < quotes[j].HubID
	})

	r.logger.Info().
		Int("orders", len(orders)).
		Int("filtered", skipped).
		Int("quotes", len(quotes)).
		Msg("reduced order snapshot")

	return quotes
}

// reduceGroup collapses all orders for one (item, hub) pair into a quote.
// The group is never empty and preserves input order.
func (r *Reducer) reduceGroup(key groupKey, group []model.RawOrder) model.Quote {
	best := group[0]
	for _, o := range group[1:] {
		// Strict comparison keeps the first-seen order as headline on ties.
		if o.Price < best.Price {
			best = o
		}
	}

	threshold := best.Price * (1 + r.depthMargin)
	var supply int64
	for _, o := range group {
		if o.Price <= threshold {
			supply += o.Remaining
		}
	}

	return model.Quote{
		ItemID:    key.itemID,
		HubID:     key.hubID,
		BestPrice: best.Price,
		Remaining: best.Remaining,
		Supply:    supply,
	}
}
