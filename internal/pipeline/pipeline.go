// Package pipeline wires the snapshot sources, the quote reducer, the
// pair generator and the artifact repository into one batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hubtrade/internal/arbitrage"
	"hubtrade/internal/history"
	"hubtrade/internal/market"
	"hubtrade/internal/model"
	"hubtrade/internal/report"
	"hubtrade/internal/source"
)

// ErrNoOrders reports that no market order data could be obtained at all.
// It is the only hard failure of a run; every other degradation shrinks
// the output instead.
var ErrNoOrders = errors.New("pipeline: no market order data available")

// Pipeline runs the snapshot-to-artifacts transformation. Each run is a
// pure function of the snapshots it is given; no state survives between
// runs.
type Pipeline struct {
	logger  zerolog.Logger
	orders  source.OrderSource
	stats   source.HistorySource
	reducer *market.Reducer
	engine  *arbitrage.Engine
	repo    report.Repository
}

// New creates a Pipeline. stats may be nil to run without historical
// enrichment.
func New(logger zerolog.Logger, orders source.OrderSource, stats source.HistorySource, reducer *market.Reducer, engine *arbitrage.Engine, repo report.Repository) *Pipeline {
	return &Pipeline{
		logger:  logger,
		orders:  orders,
		stats:   stats,
		reducer: reducer,
		engine:  engine,
		repo:    repo,
	}
}

// Run executes the full pipeline: snapshot, quotes, history, trade pairs.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := p.runLogger()

	quotes, err := p.reduce(ctx, logger)
	if err != nil {
		return err
	}
	if err := p.repo.WriteQuotes(quotes); err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}

	stats := p.loadHistory(ctx, logger)

	pairs := p.engine.GeneratePairs(quotes, stats)
	if err := p.repo.WritePairs(pairs); err != nil {
		return fmt.Errorf("write trade pairs: %w", err)
	}

	logger.Info().Int("quotes", len(quotes)).Int("pairs", len(pairs)).Msg("run complete")
	return nil
}

// RunOrders executes only the snapshot-to-quotes stage.
func (p *Pipeline) RunOrders(ctx context.Context) error {
	logger := p.runLogger()
	quotes, err := p.reduce(ctx, logger)
	if err != nil {
		return err
	}
	if err := p.repo.WriteQuotes(quotes); err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}
	return nil
}

// RunHistory fetches the weekly statistics and writes the merged history
// artifact. Unlike enrichment during Run, an unavailable source here is a
// hard failure: the stage has nothing else to produce.
func (p *Pipeline) RunHistory(ctx context.Context) error {
	if p.stats == nil {
		return errors.New("pipeline: no history source configured")
	}
	logger := p.runLogger()
	idx, err := p.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	logger.Info().Int("keys", idx.Len()).Msg("history fetched")
	if err := p.repo.WriteHistory(idx.Stats()); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// RunPairs generates trade pairs from a previously written quote artifact,
// optionally enriched from a history artifact (empty path to skip).
func (p *Pipeline) RunPairs(ctx context.Context, quotesPath, historyPath string) error {
	logger := p.runLogger()

	quotes, err := report.ReadQuotes(quotesPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoOrders, err)
	}

	var stats *history.Index
	if historyPath != "" {
		recs, err := report.ReadHistory(historyPath)
		if err != nil {
			logger.Warn().Err(err).Msg("history artifact unreadable, generating unenriched pairs")
		} else {
			stats = history.NewIndexFromStats(recs)
		}
	}

	pairs := p.engine.GeneratePairs(quotes, stats)
	if err := p.repo.WritePairs(pairs); err != nil {
		return fmt.Errorf("write trade pairs: %w", err)
	}
	logger.Info().Int("pairs", len(pairs)).Msg("pairs stage complete")
	return nil
}

func (p *Pipeline) reduce(ctx context.Context, logger zerolog.Logger) ([]model.Quote, error) {
	orders, err := p.orders.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOrders, err)
	}
	if len(orders) == 0 {
		// A readable snapshot with no usable rows is a legitimate empty
		// result, not a failure.
		logger.Warn().Msg("order snapshot contains no usable rows")
	}
	return p.reducer.Reduce(orders), nil
}

// loadHistory degrades to nil on any failure; enrichment is optional.
func (p *Pipeline) loadHistory(ctx context.Context, logger zerolog.Logger) *history.Index {
	if p.stats == nil {
		return nil
	}
	idx, err := p.stats.Stats(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("historical data unavailable, generating unenriched pairs")
		return nil
	}
	return idx
}

func (p *Pipeline) runLogger() zerolog.Logger {
	return p.logger.With().Str("run_id", uuid.NewString()).Logger()
}
