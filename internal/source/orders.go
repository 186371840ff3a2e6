package source

import (
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"hubtrade/internal/cache"
	"hubtrade/internal/model"
)

const ordersCacheEntry = "market-orders-latest.csv"

// OrderSource supplies the raw sell-order snapshot for one run.
type OrderSource interface {
	Orders(ctx context.Context) ([]model.RawOrder, error)
}

// HTTPOrderSource downloads the bz2-compressed order snapshot, keeping a
// decompressed copy in the disk cache between runs.
type HTTPOrderSource struct {
	logger  zerolog.Logger
	fetcher *Fetcher
	cache   *cache.Cache
	url     string
}

// NewHTTPOrderSource creates an order source backed by url. cache may be
// nil to disable caching.
func NewHTTPOrderSource(logger zerolog.Logger, fetcher *Fetcher, c *cache.Cache, url string) *HTTPOrderSource {
	return &HTTPOrderSource{
		logger:  logger,
		fetcher: fetcher,
		cache:   c,
		url:     url,
	}
}

// Orders returns the parsed snapshot, from cache when fresh.
func (s *HTTPOrderSource) Orders(ctx context.Context) ([]model.RawOrder, error) {
	if s.cache != nil {
		if data, ok := s.cache.Load(ordersCacheEntry); ok {
			return ParseOrders(bytes.NewReader(data), s.logger)
		}
	}

	raw, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("download order snapshot: %w", err)
	}

	data := raw
	if strings.HasSuffix(s.url, ".bz2") {
		data, err = io.ReadAll(bzip2.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("decompress order snapshot: %w", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Store(ordersCacheEntry, data); err != nil {
			s.logger.Warn().Err(err).Msg("could not cache order snapshot")
		}
	}

	return ParseOrders(bytes.NewReader(data), s.logger)
}

// FileOrderSource reads the order snapshot from a local file, decompressed
// transparently when the name ends in .bz2.
type FileOrderSource struct {
	logger zerolog.Logger
	path   string
}

// NewFileOrderSource creates an order source reading from path.
func NewFileOrderSource(logger zerolog.Logger, path string) *FileOrderSource {
	return &FileOrderSource{logger: logger, path: path}
}

// Orders returns the parsed snapshot from the local file.
func (s *FileOrderSource) Orders(ctx context.Context) ([]model.RawOrder, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open order snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(s.path, ".bz2") {
		r = bzip2.NewReader(f)
	}
	return ParseOrders(r, s.logger)
}

// ParseOrders reads an order snapshot CSV. The snapshot must carry
// price, type_id, volume_remain and station_id columns; an is_buy_order
// column is honored when present. Rows with unparseable numeric fields
// are skipped and counted, never fatal. A snapshot whose header lacks a
// required column parses to zero rows.
func ParseOrders(r io.Reader, logger zerolog.Logger) ([]model.RawOrder, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"price", "type_id", "volume_remain", "station_id"} {
		if _, ok := col[required]; !ok {
			logger.Warn().Str("column", required).Msg("snapshot is missing a required column")
			return nil, nil
		}
	}
	buyCol, hasBuyCol := col["is_buy_order"]

	var orders []model.RawOrder
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

		get := func(i int) string {
			if i < len(fields) {
				return fields[i]
			}
			return ""
		}

		var o model.RawOrder
		var perr error
		if o.Price, perr = strconv.ParseFloat(get(col["price"]), 64); perr != nil {
			malformed++
			continue
		}
		if o.ItemID, perr = strconv.ParseInt(get(col["type_id"]), 10, 64); perr != nil {
			malformed++
			continue
		}
		if o.Remaining, perr = strconv.ParseInt(get(col["volume_remain"]), 10, 64); perr != nil {
			malformed++
			continue
		}
		if o.HubID, perr = strconv.ParseInt(get(col["station_id"]), 10, 64); perr != nil {
			malformed++
			continue
		}
		if hasBuyCol {
			o.IsBuy = strings.EqualFold(get(buyCol), "true")
		}
		orders = append(orders, o)
	}

	if malformed > 0 {
		logger.Warn().Int("rows", malformed).Msg("skipped malformed snapshot rows")
	}
	logger.Debug().Int("orders", len(orders)).Msg("parsed order snapshot")
	return orders, nil
}
