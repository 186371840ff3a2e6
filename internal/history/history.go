// Package history handles the weekly per-station price and volume
// statistics tables. The two tables are published separately; this package
// parses them, keeps only the most recent record per (item, hub) key and
// merges both sides into a lookup index.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"hubtrade/internal/model"
)

type statKey struct {
	itemID int64
	hubID  int64
}

// PriceRecord is one row of the weekly price table.
type PriceRecord struct {
	ItemID   int64
	HubID    int64
	Date     string
	LowPrice float64
	AvgPrice float64
}

// VolumeRecord is one row of the weekly volume table.
type VolumeRecord struct {
	ItemID    int64
	HubID     int64
	Date      string
	AvgVolume float64
}

// Index maps (item, hub) keys to their merged most-recent statistics.
type Index struct {
	stats map[statKey]model.HistoricStat
}

// ParsePrices reads the semicolon-delimited weekly price table, keeping
// only rows for the given hubs. Malformed rows are skipped with a warning.
func ParsePrices(r io.Reader, hubs map[int64]bool, logger zerolog.Logger) ([]PriceRecord, error) {
	var records []PriceRecord
	err := parseTable(r, func(row map[string]string) bool {
		rec := PriceRecord{Date: row["date"]}
		var err error
		if rec.ItemID, err = strconv.ParseInt(row["type_id"], 10, 64); err != nil {
			return false
		}
		if rec.HubID, err = strconv.ParseInt(row["location_id"], 10, 64); err != nil {
			return false
		}
		if rec.LowPrice, err = strconv.ParseFloat(row["sell_price_low"], 64); err != nil {
			return false
		}
		if rec.AvgPrice, err = strconv.ParseFloat(row["sell_price_avg"], 64); err != nil {
			return false
		}
		if !hubs[rec.HubID] {
			return true
		}
		records = append(records, rec)
		return true
	}, logger)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ParseVolumes reads the semicolon-delimited weekly volume table, keeping
// only rows for the given hubs. Malformed rows are skipped with a warning.
func ParseVolumes(r io.Reader, hubs map[int64]bool, logger zerolog.Logger) ([]VolumeRecord, error) {
	var records []VolumeRecord
	err := parseTable(r, func(row map[string]string) bool {
		rec := VolumeRecord{Date: row["date"]}
		var err error
		if rec.ItemID, err = strconv.ParseInt(row["type_id"], 10, 64); err != nil {
			return false
		}
		if rec.HubID, err = strconv.ParseInt(row["location_id"], 10, 64); err != nil {
			return false
		}
		if rec.AvgVolume, err = strconv.ParseFloat(row["sell_volume_avg"], 64); err != nil {
			return false
		}
		if !hubs[rec.HubID] {
			return true
		}
		records = append(records, rec)
		return true
	}, logger)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// parseTable walks a semicolon-delimited table, handing each row to accept
// as a header-keyed map. accept returns false for malformed rows.
func parseTable(r io.Reader, accept func(map[string]string) bool, logger zerolog.Logger) error {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	var malformed int
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			malformed++
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		if !accept(row) {
			malformed++
		}
	}
	if malformed > 0 {
		logger.Warn().Int("rows", malformed).Msg("skipped malformed history rows")
	}
	return nil
}

// NewIndex builds a lookup index from price and volume records. For each
// (item, hub) key only the most recent record of each table is used; on
// equal dates the first record seen wins.
func NewIndex(prices []PriceRecord, volumes []VolumeRecord) *Index {
	latestPrice := make(map[statKey]PriceRecord)
	for _, p := range prices {
		key := statKey{itemID: p.ItemID, hubID: p.HubID}
		// Dates are ISO formatted, string comparison orders them.
		if cur, ok := latestPrice[key]; !ok || p.Date > cur.Date {
			latestPrice[key] = p
		}
	}

	latestVolume := make(map[statKey]VolumeRecord)
	for _, v := range volumes {
		key := statKey{itemID: v.ItemID, hubID: v.HubID}
		if cur, ok := latestVolume[key]; !ok || v.Date > cur.Date {
			latestVolume[key] = v
		}
	}

	stats := make(map[statKey]model.HistoricStat, len(latestPrice))
	for key, p := range latestPrice {
		low, avg := p.LowPrice, p.AvgPrice
		stats[key] = model.HistoricStat{
			ItemID:   key.itemID,
			HubID:    key.hubID,
			LowPrice: &low,
			AvgPrice: &avg,
		}
	}
	for key, v := range latestVolume {
		stat, ok := stats[key]
		if !ok {
			stat = model.HistoricStat{ItemID: key.itemID, HubID: key.hubID}
		}
		vol := v.AvgVolume
		stat.AvgVolume = &vol
		stats[key] = stat
	}

	return &Index{stats: stats}
}

// NewIndexFromStats rebuilds an index from previously merged statistics,
// for example rows read back from a history artifact.
func NewIndexFromStats(stats []model.HistoricStat) *Index {
	m := make(map[statKey]model.HistoricStat, len(stats))
	for _, s := range stats {
		m[statKey{itemID: s.ItemID, hubID: s.HubID}] = s
	}
	return &Index{stats: m}
}

// Lookup returns the merged statistics for one (item, hub) key.
func (ix *Index) Lookup(itemID, hubID int64) (model.HistoricStat, bool) {
	stat, ok := ix.stats[statKey{itemID: itemID, hubID: hubID}]
	return stat, ok
}

// Len reports the number of (item, hub) keys in the index.
func (ix *Index) Len() int {
	return len(ix.stats)
}

// Stats returns all merged statistics sorted by (item_id, hub_id).
func (ix *Index) Stats() []model.HistoricStat {
	out := make([]model.HistoricStat, 0, len(ix.stats))
	for _, s := range ix.stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].HubID < out[j].HubID
	})
	return out
}
