package main

import (
	"flag"
	"fmt"
	"log"

	"coletores/database"
	"coletores/export"
	"coletores/internal/config"
	"coletores/normalization/algorithms"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	format := flag.String("format", "csv", "Export format: csv, excel or json")
	output := flag.String("out", "", "Output path (defaults to the configured CSV path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	metrics, err := algorithms.NewSimilarityMetricsWithWeights(cfg.SimilarityWeights)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	store, err := database.NewCanonicalDB(cfg.CanonicalDatabasePath, metrics)
	if err != nil {
		log.Fatalf("failed to open canonical store: %v", err)
	}
	defer store.Close()

	path := *output
	if path == "" {
		path = cfg.CSVOutputPath
	}

	exporter := export.NewExporter(store)
	if err := exporter.Export(export.Format(*format), path); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	counts, err := store.CountByType()
	if err != nil {
		log.Fatalf("failed to read store stats: %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("Exported %d canonical entities to %s (%s)\n", total, path, *format)
}
