package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hubtrade/internal/arbitrage"
	"hubtrade/internal/cache"
	"hubtrade/internal/config"
	"hubtrade/internal/market"
	"hubtrade/internal/pipeline"
	"hubtrade/internal/report"
	"hubtrade/internal/source"
)

const (
	appName = "hubtrade"
	version = "v1.1.0"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Hub-to-hub market trade analyzer",
		Long:    "hubtrade reduces a market sell-order snapshot to per-hub quotes and enumerates profitable hub-to-hub trades, written as CSV artifacts.",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: snapshot, quotes, history, trade pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			return app.pipe.Run(cmd.Context())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "orders",
		Short: "Fetch the order snapshot and write the reduced quote table",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			return app.pipe.RunOrders(cmd.Context())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Fetch the weekly statistics and write the merged history table",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			return app.pipe.RunHistory(cmd.Context())
		},
	})

	pairsCmd := &cobra.Command{
		Use:   "pairs",
		Short: "Generate trade pairs from previously written artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			quotesPath, _ := cmd.Flags().GetString("quotes")
			historyPath, _ := cmd.Flags().GetString("history")
			if quotesPath == "" {
				quotesPath = app.repo.Path(report.QuotesFile)
			}
			if historyPath == "" {
				if _, err := os.Stat(app.repo.Path(report.HistoryFile)); err == nil {
					historyPath = app.repo.Path(report.HistoryFile)
				}
			}
			return app.pipe.RunPairs(cmd.Context(), quotesPath, historyPath)
		},
	}
	pairsCmd.Flags().String("quotes", "", "Quote artifact to read (defaults to the output directory)")
	pairsCmd.Flags().String("history", "", "History artifact to read (defaults to the output directory when present)")
	rootCmd.AddCommand(pairsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	pipe *pipeline.Pipeline
	repo *report.CSVRepository
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	fetcher := source.NewFetcher(logger, cfg.Sources.Timeout, cfg.Sources.MaxRetries, cfg.Sources.RateLimit)
	snapshotCache := cache.New(logger, cfg.Cache.Dir, cfg.Cache.TTL)

	orders, err := source.NewOrderSource(logger, cfg, fetcher, snapshotCache)
	if err != nil {
		return nil, err
	}
	stats, err := source.NewHistorySource(logger, cfg, fetcher)
	if err != nil {
		return nil, err
	}

	repo := report.NewCSVRepository(logger, cfg.Output.Dir)
	reducer := market.NewReducer(logger, cfg.HubSet(), cfg.Market.DepthMargin)
	engine := arbitrage.NewEngine(logger, cfg.Market.ProfitMargin)

	return &app{
		pipe: pipeline.New(logger, orders, stats, reducer, engine, repo),
		repo: repo,
	}, nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	var w zerolog.Logger
	if cfg.Format == "console" {
		w = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	} else {
		w = zerolog.New(out)
	}
	return w.Level(level).With().Timestamp().Logger()
}
