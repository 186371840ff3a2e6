package source

import (
	"fmt"

	"github.com/rs/zerolog"

	"hubtrade/internal/cache"
	"hubtrade/internal/config"
)

// NewOrderSource creates the order source selected by the configuration.
func NewOrderSource(logger zerolog.Logger, cfg *config.Config, fetcher *Fetcher, c *cache.Cache) (OrderSource, error) {
	switch cfg.Sources.Mode {
	case "http":
		return NewHTTPOrderSource(logger, fetcher, c, cfg.Sources.OrdersURL), nil
	case "file":
		return NewFileOrderSource(logger, cfg.Sources.OrdersFile), nil
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Sources.Mode)
	}
}

// NewHistorySource creates the history source selected by the
// configuration, or nil when history enrichment is disabled.
func NewHistorySource(logger zerolog.Logger, cfg *config.Config, fetcher *Fetcher) (HistorySource, error) {
	if !cfg.Sources.HistoryEnabled {
		return nil, nil
	}
	switch cfg.Sources.Mode {
	case "http":
		return NewHTTPHistorySource(logger, fetcher, cfg.Sources.HistoryPricesURL, cfg.Sources.HistoryVolumesURL, cfg.HubSet()), nil
	case "file":
		if cfg.Sources.HistoryPricesFile == "" {
			return nil, nil
		}
		return NewFileHistorySource(logger, cfg.Sources.HistoryPricesFile, cfg.Sources.HistoryVolumesFile, cfg.HubSet()), nil
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Sources.Mode)
	}
}
