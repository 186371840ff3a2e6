package report

import "hubtrade/internal/model"

// Repository defines the standard interface for writing run artifacts.
type Repository interface {
	WriteQuotes(quotes []model.Quote) error
	WritePairs(pairs []model.TradePair) error
	WriteHistory(stats []model.HistoricStat) error
}
