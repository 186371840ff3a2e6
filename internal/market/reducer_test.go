package market

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubtrade/internal/model"
)

const (
	hub1 = int64(60003760)
	hub2 = int64(60008494)
	hub3 = int64(60004588)
)

func testHubs() map[int64]bool {
	return map[int64]bool{hub1: true, hub2: true, hub3: true}
}

func TestReduce_SupplyWithinDepthMargin(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: 105, Remaining: 3},
		{ItemID: 34, HubID: hub1, Price: 200, Remaining: 50}, // outside the band
		{ItemID: 34, HubID: hub2, Price: 150, Remaining: 2},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)

	assert.Equal(t, model.Quote{ItemID: 34, HubID: hub1, BestPrice: 100, Remaining: 5, Supply: 8}, quotes[0])
	assert.Equal(t, model.Quote{ItemID: 34, HubID: hub2, BestPrice: 150, Remaining: 2, Supply: 2}, quotes[1])
}

func TestReduce_ThresholdIsInclusive(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 1},
		{ItemID: 34, HubID: hub1, Price: 110, Remaining: 4},
		{ItemID: 34, HubID: hub2, Price: 100, Remaining: 1},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)
	assert.Equal(t, int64(5), quotes[0].Supply)
}

func TestReduce_SingleHubItemsDiscarded(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub2, Price: 150, Remaining: 2},
		{ItemID: 35, HubID: hub1, Price: 10, Remaining: 100},
		{ItemID: 35, HubID: hub1, Price: 11, Remaining: 100},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		assert.Equal(t, int64(34), q.ItemID)
	}
}

func TestReduce_HeadlineTieBreakIsFirstSeen(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 9},
		{ItemID: 34, HubID: hub2, Price: 120, Remaining: 1},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)
	assert.Equal(t, int64(5), quotes[0].Remaining)
	assert.Equal(t, int64(14), quotes[0].Supply)
}

func TestReduce_FiltersBuyOrdersAndForeignHubs(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: 50, Remaining: 3, IsBuy: true},
		{ItemID: 34, HubID: 99999, Price: 10, Remaining: 3},
		{ItemID: 34, HubID: hub2, Price: 150, Remaining: 2},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)
	assert.Equal(t, float64(100), quotes[0].BestPrice)
}

func TestReduce_SkipsMalformedRows(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: -1, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: 101, Remaining: -3},
		{ItemID: 34, HubID: hub2, Price: 150, Remaining: 2},
	}

	quotes := r.Reduce(orders)
	require.Len(t, quotes, 2)
	assert.Equal(t, int64(5), quotes[0].Supply)
}

func TestReduce_EmptyInput(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	assert.Empty(t, r.Reduce(nil))
	assert.Empty(t, r.Reduce([]model.RawOrder{}))
}

func TestReduce_SupplyNeverBelowHeadlineAndGrowsWithMargin(t *testing.T) {
	orders := []model.RawOrder{
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
		{ItemID: 34, HubID: hub1, Price: 109, Remaining: 3},
		{ItemID: 34, HubID: hub1, Price: 118, Remaining: 7},
		{ItemID: 34, HubID: hub2, Price: 90, Remaining: 1},
	}

	narrow := NewReducer(zerolog.Nop(), testHubs(), 0.10).Reduce(orders)
	wide := NewReducer(zerolog.Nop(), testHubs(), 0.20).Reduce(orders)
	require.Len(t, narrow, 2)
	require.Len(t, wide, 2)

	for i := range narrow {
		assert.GreaterOrEqual(t, narrow[i].Supply, narrow[i].Remaining)
		assert.GreaterOrEqual(t, wide[i].Supply, narrow[i].Supply)
	}
	assert.Equal(t, int64(8), narrow[0].Supply)
	assert.Equal(t, int64(15), wide[0].Supply)
}

func TestReduce_DeterministicOutputOrder(t *testing.T) {
	r := NewReducer(zerolog.Nop(), testHubs(), 0.10)

	orders := []model.RawOrder{
		{ItemID: 36, HubID: hub2, Price: 10, Remaining: 1},
		{ItemID: 34, HubID: hub2, Price: 150, Remaining: 2},
		{ItemID: 36, HubID: hub1, Price: 12, Remaining: 1},
		{ItemID: 34, HubID: hub1, Price: 100, Remaining: 5},
	}

	first := r.Reduce(orders)
	second := r.Reduce(orders)
	require.Equal(t, first, second)

	require.Len(t, first, 4)
	assert.Equal(t, []int64{34, 34, 36, 36}, []int64{first[0].ItemID, first[1].ItemID, first[2].ItemID, first[3].ItemID})
	assert.Less(t, first[0].HubID, first[1].HubID)
}
