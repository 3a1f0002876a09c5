package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/classify"
	"github.com/nuview/topo-pipeline/internal/config"
	"github.com/nuview/topo-pipeline/internal/ingest"
	"github.com/nuview/topo-pipeline/internal/logging"
	"github.com/nuview/topo-pipeline/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to run config file (optional, TOPO_* env vars override)")
	sourcesPath := flag.String("sources", "", "path to a sources.yaml overriding the embedded registry")
	scoringPath := flag.String("scoring", "", "path to a scoring.yaml overriding the embedded tables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	scoring, err := loadScoring(*scoringPath)
	if err != nil {
		logger.Fatal("load scoring config", zap.Error(err))
	}

	registry, err := ingest.LoadRegistry(*sourcesPath)
	if err != nil {
		logger.Fatal("load source registry", zap.Error(err))
	}

	fetcher := ingest.NewRetryingFetcher(ingest.FetchConfig{
		TimeoutSeconds: cfg.HTTP.TimeoutSeconds,
		MaxRetries:     cfg.HTTP.MaxRetries,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
	})
	for _, src := range registry.Active() {
		fetcher.Configure(src.BaseURL, src.Fetch)
	}

	p, err := pipeline.New(cfg, scoring, ingest.DefaultFactory(), fetcher, logger)
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger.Info("pipeline run starting",
		zap.String("run_id", runID),
		zap.Int("sources", len(registry.Sources)),
		zap.Int("active", len(registry.Active())))

	start := time.Now()
	res, err := p.Run(ctx, registry.Sources)
	if err != nil {
		logger.Fatal("pipeline run failed", zap.String("run_id", runID), zap.Error(err))
	}

	failed := 0
	for _, st := range res.Stats {
		if st.Err != nil {
			failed++
		}
	}

	logger.Info("pipeline run complete",
		zap.String("run_id", runID),
		zap.Duration("took", time.Since(start)),
		zap.Int("records", len(res.Opportunities)),
		zap.Int("sources_failed", failed),
		zap.Int("qc_errors", res.Report.TotalErrors),
		zap.Int("qc_warnings", res.Report.TotalWarnings),
		zap.Float64("pass_rate", res.Report.PassRate))
}

func loadScoring(path string) (classify.Config, error) {
	if path != "" {
		return classify.LoadConfig(path)
	}
	return classify.DefaultConfig()
}
