// Package report writes the run artifacts as CSV tables and reads them
// back for stage-by-stage invocations. An empty result still produces a
// well-formed artifact with its header row.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"hubtrade/internal/model"
)

// Artifact file names inside the output directory.
const (
	QuotesFile  = "quotes.csv"
	PairsFile   = "trade_pairs.csv"
	HistoryFile = "history.csv"
)

var quoteHeader = []string{"item_id", "hub_id", "best_price", "remaining_quantity", "supply"}

var pairHeader = []string{
	"item_id", "origin_hub", "destination_hub",
	"origin_price", "destination_price",
	"origin_remaining_quantity", "destination_remaining_quantity",
	"origin_supply", "destination_supply",
	"profit_margin",
	"destination_historical_low_price",
	"destination_historical_avg_price",
	"destination_historical_avg_volume",
}

var historyHeader = []string{"item_id", "hub_id", "low_price", "avg_price", "avg_volume"}

// CSVRepository writes artifacts into a directory, creating it on demand.
type CSVRepository struct {
	logger zerolog.Logger
	dir    string
}

// NewCSVRepository creates a repository rooted at dir.
func NewCSVRepository(logger zerolog.Logger, dir string) *CSVRepository {
	return &CSVRepository{logger: logger, dir: dir}
}

// WriteQuotes writes the reduced quote table.
func (r *CSVRepository) WriteQuotes(quotes []model.Quote) error {
	rows := make([][]string, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, []string{
			formatInt(q.ItemID),
			formatInt(q.HubID),
			formatFloat(q.BestPrice),
			formatInt(q.Remaining),
			formatInt(q.Supply),
		})
	}
	return r.write(QuotesFile, quoteHeader, rows)
}

// WritePairs writes the trade pair table in its given order.
func (r *CSVRepository) WritePairs(pairs []model.TradePair) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			formatInt(p.ItemID),
			formatInt(p.OriginHub),
			formatInt(p.DestinationHub),
			formatFloat(p.OriginPrice),
			formatFloat(p.DestinationPrice),
			formatInt(p.OriginRemaining),
			formatInt(p.DestinationRemaining),
			formatInt(p.OriginSupply),
			formatInt(p.DestinationSupply),
			formatFloat(p.ProfitMargin),
			formatOptFloat(p.HistLowPrice),
			formatOptFloat(p.HistAvgPrice),
			formatOptFloat(p.HistAvgVolume),
		})
	}
	return r.write(PairsFile, pairHeader, rows)
}

// WriteHistory writes the merged historical statistics table.
func (r *CSVRepository) WriteHistory(stats []model.HistoricStat) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			formatInt(s.ItemID),
			formatInt(s.HubID),
			formatOptFloat(s.LowPrice),
			formatOptFloat(s.AvgPrice),
			formatOptFloat(s.AvgVolume),
		})
	}
	return r.write(HistoryFile, historyHeader, rows)
}

// Path returns the absolute location of an artifact inside the repository.
func (r *CSVRepository) Path(name string) string {
	return filepath.Join(r.dir, name)
}

func (r *CSVRepository) write(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := r.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header of %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row of %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush artifact %s: %w", path, err)
	}

	r.logger.Info().Str("artifact", path).Int("rows", len(rows)).Msg("artifact written")
	return nil
}

// ReadQuotes parses a quote artifact written by WriteQuotes.
func ReadQuotes(path string) ([]model.Quote, error) {
	var quotes []model.Quote
	err := readTable(path, quoteHeader, func(fields []string) error {
		var q model.Quote
		var err error
		if q.ItemID, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
			return err
		}
		if q.HubID, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return err
		}
		if q.BestPrice, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return err
		}
		if q.Remaining, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
			return err
		}
		if q.Supply, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
			return err
		}
		quotes = append(quotes, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

// ReadHistory parses a history artifact written by WriteHistory.
func ReadHistory(path string) ([]model.HistoricStat, error) {
	var stats []model.HistoricStat
	err := readTable(path, historyHeader, func(fields []string) error {
		var s model.HistoricStat
		var err error
		if s.ItemID, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
			return err
		}
		if s.HubID, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return err
		}
		if s.LowPrice, err = parseOptFloat(fields[2]); err != nil {
			return err
		}
		if s.AvgPrice, err = parseOptFloat(fields[3]); err != nil {
			return err
		}
		if s.AvgVolume, err = parseOptFloat(fields[4]); err != nil {
			return err
		}
		stats = append(stats, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func readTable(path string, header []string, scan func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	got, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("artifact %s is empty", path)
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	if strings.Join(got, ",") != strings.Join(header, ",") {
		return fmt.Errorf("artifact %s has unexpected columns %v", path, got)
	}

	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		if err := scan(fields); err != nil {
			return fmt.Errorf("parse %s line %d: %w", path, line, err)
		}
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
