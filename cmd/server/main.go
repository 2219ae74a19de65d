package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"coletores/database"
	"coletores/internal/config"
	"coletores/normalization/algorithms"
	"coletores/server"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	metrics, err := algorithms.NewSimilarityMetricsWithWeights(cfg.SimilarityWeights)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	store, err := database.NewCanonicalDB(cfg.CanonicalDatabasePath, metrics)
	if err != nil {
		log.Fatalf("failed to open canonical store: %v", err)
	}
	defer store.Close()

	srv := server.New(cfg, store)
	if err := srv.Run(); err != nil {
		log.Fatalf("review api failed: %v", err)
	}
}
