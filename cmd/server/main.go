package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/api"
	"github.com/nuview/topo-pipeline/internal/config"
	"github.com/nuview/topo-pipeline/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to run config file (optional, TOPO_* env vars override)")
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

	srv := api.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
