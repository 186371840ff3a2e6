package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyHubs = map[int64]bool{60003760: true, 60008494: true}

const weeklyPricesCSV = `type_id;location_id;date;sell_price_low;sell_price_avg;sell_price_high
34;60003760;2025-08-18;4.1;4.5;5.2
34;60008494;2025-08-18;4.8;5.1;5.9
`

const weeklyVolumesCSV = `type_id;location_id;date;sell_volume_low;sell_volume_avg;sell_volume_high
34;60003760;2025-08-18;1000;2500;4000
`

// Wednesday afternoon, ISO week 34 of 2025.
var wednesday = time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC)

func TestCandidateWeeks(t *testing.T) {
	t.Run("midweek run uses the current week first", func(t *testing.T) {
		weeks := candidateWeeks(wednesday)
		require.Len(t, weeks, 2)
		assert.Equal(t, "2025-34", weeks[0].stamp())
		assert.Equal(t, "2025-33", weeks[1].stamp())
	})

	t.Run("monday morning starts from the previous week", func(t *testing.T) {
		monday := time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
		weeks := candidateWeeks(monday)
		assert.Equal(t, "2025-33", weeks[0].stamp())
		assert.Equal(t, "2025-32", weeks[1].stamp())
	})

	t.Run("monday afternoon uses the current week", func(t *testing.T) {
		monday := time.Date(2025, 8, 18, 14, 0, 0, 0, time.UTC)
		weeks := candidateWeeks(monday)
		assert.Equal(t, "2025-34", weeks[0].stamp())
	})
}

func TestWeekURL(t *testing.T) {
	url := weekURL("https://example.org/prices", "MarketPricesStationHistory", isoWeek{year: 2025, week: 7})
	assert.Equal(t, "https://example.org/prices/2025/MarketPricesStationHistory_hub_weekly_2025-07.csv", url)
}

func newHistoryServer(t *testing.T, prices, volumes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/prices/", func(w http.ResponseWriter, r *http.Request) {
		if body, ok := prices[r.URL.Path]; ok {
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/volumes/", func(w http.ResponseWriter, r *http.Request) {
		if body, ok := volumes[r.URL.Path]; ok {
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPHistorySource_CurrentWeek(t *testing.T) {
	srv := newHistoryServer(t,
		map[string]string{"/prices/2025/MarketPricesStationHistory_hub_weekly_2025-34.csv": weeklyPricesCSV},
		map[string]string{"/volumes/2025/MarketVolumesStationHistory_hub_weekly_2025-34.csv": weeklyVolumesCSV},
	)

	src := NewHTTPHistorySource(zerolog.Nop(), testFetcher(), srv.URL+"/prices", srv.URL+"/volumes", historyHubs)
	src.now = func() time.Time { return wednesday }

	idx, err := src.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	stat, ok := idx.Lookup(34, 60003760)
	require.True(t, ok)
	assert.Equal(t, 4.1, *stat.LowPrice)
	assert.Equal(t, 2500.0, *stat.AvgVolume)
}

func TestHTTPHistorySource_FallsBackToPreviousWeek(t *testing.T) {
	srv := newHistoryServer(t,
		map[string]string{"/prices/2025/MarketPricesStationHistory_hub_weekly_2025-33.csv": weeklyPricesCSV},
		map[string]string{"/volumes/2025/MarketVolumesStationHistory_hub_weekly_2025-33.csv": weeklyVolumesCSV},
	)

	src := NewHTTPHistorySource(zerolog.Nop(), testFetcher(), srv.URL+"/prices", srv.URL+"/volumes", historyHubs)
	src.now = func() time.Time { return wednesday }

	idx, err := src.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}

func TestHTTPHistorySource_NoWeekAvailable(t *testing.T) {
	srv := newHistoryServer(t, nil, nil)

	src := NewHTTPHistorySource(zerolog.Nop(), testFetcher(), srv.URL+"/prices", srv.URL+"/volumes", historyHubs)
	src.now = func() time.Time { return wednesday }

	_, err := src.Stats(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPHistorySource_MissingVolumesDegrades(t *testing.T) {
	srv := newHistoryServer(t,
		map[string]string{"/prices/2025/MarketPricesStationHistory_hub_weekly_2025-34.csv": weeklyPricesCSV},
		nil,
	)

	src := NewHTTPHistorySource(zerolog.Nop(), testFetcher(), srv.URL+"/prices", srv.URL+"/volumes", historyHubs)
	src.now = func() time.Time { return wednesday }

	idx, err := src.Stats(context.Background())
	require.NoError(t, err)

	stat, ok := idx.Lookup(34, 60003760)
	require.True(t, ok)
	assert.Equal(t, 4.1, *stat.LowPrice)
	assert.Nil(t, stat.AvgVolume)
}

func TestFileHistorySource(t *testing.T) {
	dir := t.TempDir()
	pricesPath := filepath.Join(dir, "prices.csv")
	volumesPath := filepath.Join(dir, "volumes.csv")
	require.NoError(t, os.WriteFile(pricesPath, []byte(weeklyPricesCSV), 0o644))
	require.NoError(t, os.WriteFile(volumesPath, []byte(weeklyVolumesCSV), 0o644))

	src := NewFileHistorySource(zerolog.Nop(), pricesPath, volumesPath, historyHubs)
	idx, err := src.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}

func TestFileHistorySource_MissingVolumesDegrades(t *testing.T) {
	dir := t.TempDir()
	pricesPath := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(pricesPath, []byte(weeklyPricesCSV), 0o644))

	src := NewFileHistorySource(zerolog.Nop(), pricesPath, filepath.Join(dir, "missing.csv"), historyHubs)
	idx, err := src.Stats(context.Background())
	require.NoError(t, err)

	stat, ok := idx.Lookup(34, 60008494)
	require.True(t, ok)
	assert.Nil(t, stat.AvgVolume)
}

func TestFileHistorySource_MissingPricesFails(t *testing.T) {
	src := NewFileHistorySource(zerolog.Nop(), "testdata/nope.csv", "", historyHubs)
	_, err := src.Stats(context.Background())
	assert.Error(t, err)
}
