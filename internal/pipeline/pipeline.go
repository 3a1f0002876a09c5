// Package pipeline wires the run end to end: dispatch fetchers,
// normalize, verify links, classify, validate, write artifacts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/classify"
	"github.com/nuview/topo-pipeline/internal/config"
	"github.com/nuview/topo-pipeline/internal/dispatch"
	"github.com/nuview/topo-pipeline/internal/ingest"
	"github.com/nuview/topo-pipeline/internal/models"
	"github.com/nuview/topo-pipeline/internal/output"
	"github.com/nuview/topo-pipeline/internal/qc"
)

// Result is what one pipeline run produced.
type Result struct {
	Opportunities []models.Opportunity
	Stats         []dispatch.SourceStat
	Report        *qc.Report
}

type Pipeline struct {
	cfg        config.Config
	classifier *classify.Classifier
	validator  *qc.Validator
	dispatcher *dispatch.Dispatcher
	writer     *output.Writer
	logger     *zap.Logger
}

// New builds a pipeline from run config and scoring tables. A bad
// scoring config is the one fatal error class; everything later
// degrades per source or per record instead of failing the run.
func New(cfg config.Config, scoring classify.Config, factory *ingest.StrategyFactory, fetcher ingest.Fetcher, logger *zap.Logger) (*Pipeline, error) {
	classifier, err := classify.NewClassifier(scoring)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	deps := ingest.Deps{Fetcher: fetcher, Logger: logger}
	dispatcher := dispatch.New(
		factory,
		deps,
		cfg.Dispatch.Workers,
		time.Duration(cfg.Dispatch.SourceTimeoutSec)*time.Second,
		logger,
	)

	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		validator:  qc.NewValidator(logger),
		dispatcher: dispatcher,
		writer:     output.NewWriter(cfg.Output.Dir, logger),
		logger:     logger,
	}, nil
}

// Run executes one full batch and writes the snapshot, matrix, and QC
// report. Output is written even when every source failed.
func (p *Pipeline) Run(ctx context.Context, sources []ingest.SourceConfig) (*Result, error) {
	if p.cfg.Dispatch.BatchTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Dispatch.BatchTimeoutSec)*time.Second)
		defer cancel()
	}

	now := time.Now().UTC()
	raws, stats := p.dispatcher.RunAll(ctx, sources)
	p.logger.Info("dispatch complete",
		zap.Int("sources", len(sources)),
		zap.Int("raw_records", len(raws)))

	opps := p.normalize(raws, sources, now)

	p.validator.VerifyLinks(opps)
	for i := range opps {
		p.classifier.Apply(&opps[i], now)
	}

	kept, report := p.validator.Validate(opps)

	if err := p.writer.WriteSnapshot(p.cfg.Output.SnapshotFile, kept, now); err != nil {
		return nil, err
	}
	if err := p.writer.WriteMatrix(p.cfg.Output.MatrixFile, qc.Matrix(kept)); err != nil {
		return nil, err
	}
	if err := p.writer.WriteQCReport(p.cfg.Output.QCReportFile, report); err != nil {
		return nil, err
	}

	return &Result{Opportunities: kept, Stats: stats, Report: report}, nil
}

// normalize converts raw records, applying each source's date-locale
// hints.
func (p *Pipeline) normalize(raws []models.RawOpportunity, sources []ingest.SourceConfig, scrapedAt time.Time) []models.Opportunity {
	byID := make(map[string]ingest.SourceConfig, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}

	grouped := make(map[string][]models.RawOpportunity)
	var order []string
	for _, raw := range raws {
		if _, seen := grouped[raw.Scraper]; !seen {
			order = append(order, raw.Scraper)
		}
		grouped[raw.Scraper] = append(grouped[raw.Scraper], raw)
	}

	var out []models.Opportunity
	for _, id := range order {
		out = append(out, ingest.FromRawAll(grouped[id], byID[id], scrapedAt)...)
	}
	return out
}
