// Package arbitrage enumerates directional hub-to-hub trade candidates
// from the reduced quote table.
package arbitrage

import (
	"sort"

	"github.com/rs/zerolog"

	"hubtrade/internal/history"
	"hubtrade/internal/model"
)

// Engine holds the logic for identifying profitable trade pairs.
type Engine struct {
	logger          zerolog.Logger
	marginThreshold float64
}

// NewEngine creates an Engine that retains pairs whose profit margin is at
// least marginThreshold.
func NewEngine(logger zerolog.Logger, marginThreshold float64) *Engine {
	return &Engine{
		logger:          logger,
		marginThreshold: marginThreshold,
	}
}

// GeneratePairs produces every ordered (origin, destination) combination
// of distinct hubs quoting the same item, keeping those whose profit
// margin clears the threshold. The margin is directional: A->B and B->A
// use different denominators and are evaluated independently.
//
// When stats is non-nil, each retained pair is enriched with the most
// recent historical statistics of its destination; a missing match leaves
// the historical fields nil and never drops the pair. stats may be nil.
//
// The result is sorted by profit margin descending; ties preserve the
// enumeration order (items ascending, hubs ascending), so identical input
// yields identical output.
func (e *Engine) GeneratePairs(quotes []model.Quote, stats *history.Index) []model.TradePair {
	byItem := make(map[int64]map[int64]model.Quote)
	var items []int64
	for _, q := range quotes {
		hubs, ok := byItem[q.ItemID]
		if !ok {
			hubs = make(map[int64]model.Quote)
			byItem[q.ItemID] = hubs
			items = append(items, q.ItemID)
		}
		hubs[q.HubID] = q
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })

	var pairs []model.TradePair
	for _, itemID := range items {
		hubQuotes := byItem[itemID]
		if len(hubQuotes) < 2 {
			continue
		}

		hubs := make([]int64, 0, len(hubQuotes))
		for hubID := range hubQuotes {
			hubs = append(hubs, hubID)
		}
		sort.Slice(hubs, func(i, j int) bool { return hubs[i] < hubs[j] })

		for _, origin := range hubs {
			for _, dest := range hubs {
				if origin == dest {
					continue
				}
				o, d := hubQuotes[origin], hubQuotes[dest]
				margin := (d.BestPrice - o.BestPrice) / o.BestPrice
				if margin < e.marginThreshold {
					continue
				}
				pairs = append(pairs, e.buildPair(o, d, margin, stats))
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].ProfitMargin > pairs[j].ProfitMargin
	})

	e.logger.Info().
		Int("quotes", len(quotes)).
		Int("pairs", len(pairs)).
		Bool("enriched", stats != nil).
		Msg("generated trade pairs")

	return pairs
}

func (e *Engine) buildPair(origin, dest model.Quote, margin float64, stats *history.Index) model.TradePair {
	pair := model.TradePair{
		ItemID:               origin.ItemID,
		OriginHub:            origin.HubID,
		DestinationHub:       dest.HubID,
		OriginPrice:          origin.BestPrice,
		DestinationPrice:     dest.BestPrice,
		OriginRemaining:      origin.Remaining,
		DestinationRemaining: dest.Remaining,
		OriginSupply:         origin.Supply,
		DestinationSupply:    dest.Supply,
		ProfitMargin:         margin,
	}

	if stats != nil {
		if stat, ok := stats.Lookup(dest.ItemID, dest.HubID); ok {
			pair.HistLowPrice = stat.LowPrice
			pair.HistAvgPrice = stat.AvgPrice
			pair.HistAvgVolume = stat.AvgVolume
		}
	}

	return pair
}
