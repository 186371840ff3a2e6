package model

// RawOrder represents a single sell order from a market snapshot.
// Orders carry the buy flag so the reducer can exclude buy orders even
// when the snapshot was already pre-filtered.
type RawOrder struct {
	ItemID    int64
	HubID     int64
	Price     float64
	Remaining int64
	IsBuy     bool
}

// Quote is the reduced best-price record for one (item, hub) pair.
// Remaining is the quantity of the headline order that set BestPrice;
// Supply is the total remaining quantity across all orders priced within
// the depth margin above BestPrice, so Supply >= Remaining always holds.
type Quote struct {
	ItemID    int64
	HubID     int64
	BestPrice float64
	Remaining int64
	Supply    int64
}

// HistoricStat holds the most recent weekly price and volume statistics
// for one (item, hub) pair. Price and volume records come from separate
// tables, so either side may be absent.
type HistoricStat struct {
	ItemID    int64
	HubID     int64
	LowPrice  *float64
	AvgPrice  *float64
	AvgVolume *float64
}

// TradePair is a directional arbitrage candidate: buy ItemID at OriginHub,
// sell at DestinationHub. The three historical fields are nil when no
// weekly statistics exist for the destination.
type TradePair struct {
	ItemID               int64
	OriginHub            int64
	DestinationHub       int64
	OriginPrice          float64
	DestinationPrice     float64
	OriginRemaining      int64
	DestinationRemaining int64
	OriginSupply         int64
	DestinationSupply    int64
	ProfitMargin         float64
	HistLowPrice         *float64
	HistAvgPrice         *float64
	HistAvgVolume        *float64
}
