// Package dispatch runs source fetches concurrently over a bounded
// worker pool. One failing source never aborts the batch; its error is
// recorded in the per-source stats and the rest keep going.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/ingest"
	"github.com/nuview/topo-pipeline/internal/models"
)

// SourceStat is the outcome of one source's fetch.
type SourceStat struct {
	SourceID string        `json:"sourceId"`
	Name     string        `json:"name"`
	Country  string        `json:"country"`
	Strategy string        `json:"strategy"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	ErrText  string        `json:"error,omitempty"`
	Skipped  bool          `json:"skipped"`
}

// Dispatcher fans source configs out to workers.
type Dispatcher struct {
	factory       *ingest.StrategyFactory
	deps          ingest.Deps
	workers       int
	sourceTimeout time.Duration
	logger        *zap.Logger
}

func New(factory *ingest.StrategyFactory, deps ingest.Deps, workers int, sourceTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		factory:       factory,
		deps:          deps,
		workers:       workers,
		sourceTimeout: sourceTimeout,
		logger:        logger,
	}
}

// RunAll fetches every source and returns the combined raw records plus
// one stat per source, stats ordered by source ID. Inactive sources get
// a skipped stat so the coverage matrix still lists them; sources never
// dispatched because the batch context expired get a stat carrying the
// context error. Partial results from a source that failed mid-run are
// kept.
func (d *Dispatcher) RunAll(ctx context.Context, sources []ingest.SourceConfig) ([]models.RawOpportunity, []SourceStat) {
	jobs := make(chan ingest.SourceConfig)
	var (
		mu    sync.Mutex
		raws  []models.RawOpportunity
		stats []SourceStat
	)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				stat, records := d.runOne(ctx, src)
				mu.Lock()
				raws = append(raws, records...)
				stats = append(stats, stat)
				mu.Unlock()
			}
		}()
	}

	for _, src := range sources {
		if !src.Active {
			mu.Lock()
			stats = append(stats, SourceStat{
				SourceID: src.ID,
				Name:     src.Name,
				Country:  src.Country,
				Strategy: src.Strategy,
				Skipped:  true,
			})
			mu.Unlock()
			continue
		}
		select {
		case jobs <- src:
		case <-ctx.Done():
			// The batch deadline hit before this source reached a
			// worker; it still gets a stat so the coverage matrix
			// accounts for every source.
			mu.Lock()
			stats = append(stats, SourceStat{
				SourceID: src.ID,
				Name:     src.Name,
				Country:  src.Country,
				Strategy: src.Strategy,
				Err:      ctx.Err(),
				ErrText:  ctx.Err().Error(),
			})
			mu.Unlock()
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(stats, func(i, j int) bool { return stats[i].SourceID < stats[j].SourceID })
	return raws, stats
}

func (d *Dispatcher) runOne(ctx context.Context, src ingest.SourceConfig) (SourceStat, []models.RawOpportunity) {
	stat := SourceStat{
		SourceID: src.ID,
		Name:     src.Name,
		Country:  src.Country,
		Strategy: src.Strategy,
	}

	strategy, err := d.factory.Get(src.Strategy)
	if err != nil {
		stat.Err = err
		stat.ErrText = err.Error()
		d.logger.Error("unknown strategy", zap.String("source", src.ID), zap.Error(err))
		return stat, nil
	}

	runCtx := ctx
	cancel := func() {}
	if d.sourceTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.sourceTimeout)
	}
	defer cancel()

	start := time.Now()
	records, err := strategy.Run(runCtx, src, d.deps)
	stat.Duration = time.Since(start)
	stat.Records = len(records)

	if err != nil {
		stat.Err = err
		stat.ErrText = err.Error()
		d.logger.Warn("source fetch failed",
			zap.String("source", src.ID),
			zap.Int("partial_records", len(records)),
			zap.Duration("took", stat.Duration),
			zap.Error(err))
		return stat, records
	}

	d.logger.Info("source fetch ok",
		zap.String("source", src.ID),
		zap.Int("records", len(records)),
		zap.Duration("took", stat.Duration))
	return stat, records
}
