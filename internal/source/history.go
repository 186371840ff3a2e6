package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"hubtrade/internal/history"
)

// HistorySource supplies the optional weekly historical statistics.
type HistorySource interface {
	Stats(ctx context.Context) (*history.Index, error)
}

// HTTPHistorySource downloads the weekly price and volume tables from
// their week-stamped URLs.
type HTTPHistorySource struct {
	logger      zerolog.Logger
	fetcher     *Fetcher
	pricesBase  string
	volumesBase string
	hubs        map[int64]bool

	// now is swappable for tests.
	now func() time.Time
}

// NewHTTPHistorySource creates a history source from the two table base
// URLs, e.g. https://static.adam4eve.eu/MarketPricesStationHistory.
func NewHTTPHistorySource(logger zerolog.Logger, fetcher *Fetcher, pricesBase, volumesBase string, hubs map[int64]bool) *HTTPHistorySource {
	return &HTTPHistorySource{
		logger:      logger,
		fetcher:     fetcher,
		pricesBase:  pricesBase,
		volumesBase: volumesBase,
		hubs:        hubs,
		now:         time.Now,
	}
}

// Stats downloads and indexes the weekly tables. The current ISO week is
// tried first (the previous one on Monday mornings, before the weekly
// files are published); a missing price table falls back one more week.
// A missing volume table degrades to price-only statistics.
func (s *HTTPHistorySource) Stats(ctx context.Context) (*history.Index, error) {
	var lastErr error
	for _, week := range candidateWeeks(s.now()) {
		priceURL := weekURL(s.pricesBase, "MarketPricesStationHistory", week)
		raw, err := s.fetcher.Get(ctx, priceURL)
		if errors.Is(err, ErrNotFound) {
			s.logger.Info().Str("week", week.stamp()).Msg("weekly price table not published yet, trying previous week")
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("download weekly prices: %w", err)
		}

		prices, err := history.ParsePrices(bytes.NewReader(raw), s.hubs, s.logger)
		if err != nil {
			return nil, fmt.Errorf("parse weekly prices: %w", err)
		}

		volumes := s.fetchVolumes(ctx, week)
		return history.NewIndex(prices, volumes), nil
	}
	return nil, fmt.Errorf("no weekly price table available: %w", lastErr)
}

func (s *HTTPHistorySource) fetchVolumes(ctx context.Context, week isoWeek) []history.VolumeRecord {
	raw, err := s.fetcher.Get(ctx, weekURL(s.volumesBase, "MarketVolumesStationHistory", week))
	if err != nil {
		s.logger.Warn().Err(err).Msg("weekly volume table unavailable, continuing with prices only")
		return nil
	}
	volumes, err := history.ParseVolumes(bytes.NewReader(raw), s.hubs, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("weekly volume table unreadable, continuing with prices only")
		return nil
	}
	return volumes
}

type isoWeek struct {
	year int
	week int
}

func (w isoWeek) stamp() string {
	return fmt.Sprintf("%d-%02d", w.year, w.week)
}

func weekURL(base, prefix string, w isoWeek) string {
	return fmt.Sprintf("%s/%d/%s_hub_weekly_%s.csv", base, w.year, prefix, w.stamp())
}

// candidateWeeks returns the weeks to try in order. The weekly files land
// on Mondays around noon, so a Monday-morning run starts from the previous
// week.
func candidateWeeks(now time.Time) []isoWeek {
	ref := now
	if ref.Weekday() == time.Monday && ref.Hour() < 12 {
		ref = ref.AddDate(0, 0, -7)
	}
	current := isoWeekOf(ref)
	previous := isoWeekOf(ref.AddDate(0, 0, -7))
	return []isoWeek{current, previous}
}

func isoWeekOf(t time.Time) isoWeek {
	year, week := t.ISOWeek()
	return isoWeek{year: year, week: week}
}

// FileHistorySource reads the weekly tables from local files. The volume
// path may be empty for price-only statistics.
type FileHistorySource struct {
	logger      zerolog.Logger
	pricesPath  string
	volumesPath string
	hubs        map[int64]bool
}

// NewFileHistorySource creates a history source reading from local paths.
func NewFileHistorySource(logger zerolog.Logger, pricesPath, volumesPath string, hubs map[int64]bool) *FileHistorySource {
	return &FileHistorySource{
		logger:      logger,
		pricesPath:  pricesPath,
		volumesPath: volumesPath,
		hubs:        hubs,
	}
}

// Stats parses and indexes the local weekly tables.
func (s *FileHistorySource) Stats(ctx context.Context) (*history.Index, error) {
	rawPrices, err := os.ReadFile(s.pricesPath)
	if err != nil {
		return nil, fmt.Errorf("read weekly prices: %w", err)
	}
	prices, err := history.ParsePrices(bytes.NewReader(rawPrices), s.hubs, s.logger)
	if err != nil {
		return nil, fmt.Errorf("parse weekly prices: %w", err)
	}

	var volumes []history.VolumeRecord
	if s.volumesPath != "" {
		rawVolumes, err := os.ReadFile(s.volumesPath)
		if err != nil {
			s.logger.Warn().Err(err).Msg("weekly volume table unavailable, continuing with prices only")
		} else if volumes, err = history.ParseVolumes(bytes.NewReader(rawVolumes), s.hubs, s.logger); err != nil {
			s.logger.Warn().Err(err).Msg("weekly volume table unreadable, continuing with prices only")
			volumes = nil
		}
	}

	return history.NewIndex(prices, volumes), nil
}
