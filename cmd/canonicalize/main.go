package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"coletores/database"
	"coletores/export"
	"coletores/internal/config"
	"coletores/ner"
	"coletores/normalization/algorithms"
	"coletores/pipeline"
	"coletores/source"
	"coletores/websearch"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	sourcePath := flag.String("source", "", "Record source: .csv, .xlsx or .db file (overrides config)")
	exportCSV := flag.Bool("export", true, "Export the CSV after the run")
	resume := flag.Bool("resume", true, "Skip records already marked in the progress tracker")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	setupLogging(cfg.LogLevel)

	metrics, err := algorithms.NewSimilarityMetricsWithWeights(cfg.SimilarityWeights)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CanonicalDatabasePath), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	store, err := database.NewCanonicalDB(cfg.CanonicalDatabasePath, metrics)
	if err != nil {
		log.Fatalf("failed to open canonical store: %v", err)
	}
	defer store.Close()

	var progress *database.ProgressTracker
	if *resume && cfg.ProgressDatabasePath != "" {
		progress, err = database.NewProgressTracker(cfg.ProgressDatabasePath)
		if err != nil {
			log.Fatalf("failed to open progress tracker: %v", err)
		}
		defer progress.Close()
	}

	src, err := openSource(cfg, *sourcePath)
	if err != nil {
		log.Fatalf("failed to open record source: %v", err)
	}
	defer src.Close()

	recognizer := buildRecognizer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, store, recognizer, progress)
	summary, err := p.Run(ctx, src)
	if err != nil {
		log.Fatalf("pipeline run failed: %v", err)
	}

	if *exportCSV {
		exporter := export.NewExporter(store)
		if err := exporter.Export(export.FormatCSV, cfg.CSVOutputPath); err != nil {
			log.Fatalf("csv export failed: %v", err)
		}
	}

	printSummary(summary, cfg, *exportCSV)

	if cfg.WebSearchEnabled {
		verifyInstitutions(ctx, store)
	}
}

// verifyInstitutions checks Empresa entities against the public web and
// reports the ones without evidence, for curator review.
func verifyInstitutions(ctx context.Context, store *database.CanonicalDB) {
	entities, err := store.AllEntities()
	if err != nil {
		log.Printf("institution verification skipped: %v", err)
		return
	}

	validator := websearch.NewInstitutionValidator(websearch.NewClient(20, 24*time.Hour))
	verifications := validator.Verify(ctx, entities)

	unverified := 0
	for _, v := range verifications {
		if !v.Verified {
			unverified++
			fmt.Printf("unverified institution: %s\n", v.CanonicalName)
		}
	}
	fmt.Printf("Institutions checked: %d (%d unverified)\n", len(verifications), unverified)
}

func openSource(cfg *config.Config, override string) (source.RecordSource, error) {
	path := override
	if path == "" {
		switch {
		case cfg.SourceCSVPath != "":
			path = cfg.SourceCSVPath
		case cfg.SourceXLSXPath != "":
			path = cfg.SourceXLSXPath
		case cfg.SourceSQLite.Path != "":
			path = cfg.SourceSQLite.Path
		default:
			return nil, fmt.Errorf("no record source configured")
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return source.NewCSVSource(path, cfg.SourceIDColumn, cfg.SourceNameColumn)
	case ".xlsx":
		return source.NewXLSXSource(path, cfg.SourceIDColumn, cfg.SourceNameColumn)
	case ".db", ".sqlite", ".sqlite3":
		sqliteCfg := cfg.SourceSQLite
		sqliteCfg.Path = path
		return source.NewSQLiteSource(sqliteCfg)
	default:
		return nil, fmt.Errorf("unsupported source file %q", path)
	}
}

func buildRecognizer(cfg *config.Config) ner.Recognizer {
	if cfg.NERAPIKey == "" {
		return ner.NewNoopRecognizer()
	}
	hf := ner.NewHuggingFaceRecognizer(ner.HuggingFaceConfig{
		APIKey:  cfg.NERAPIKey,
		Model:   cfg.NERModel,
		Timeout: cfg.NERTimeout(),
	})
	return ner.NewCachedRecognizer(hf, 0)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func printSummary(summary *pipeline.Summary, cfg *config.Config, exported bool) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	bold.Println("--- Collector Canonicalization ---")
	fmt.Printf("Run ID: %s\n", summary.RunID)
	fmt.Printf("Processed: %d records (%.1f rec/s)\n", summary.Processed, summary.Rate())
	if summary.Skipped > 0 {
		fmt.Printf("Skipped (already processed): %d\n", summary.Skipped)
	}
	green.Printf("New canonical entities: %d\n", summary.NewEntities)
	fmt.Printf("Merged variations: %d\n", summary.MergedVariations)
	if summary.Discarded > 0 {
		yellow.Printf("Discarded: %d\n", summary.Discarded)
	}
	fmt.Printf("NER fallback calls: %d (%d failed)\n", summary.NERCalls, summary.NERFailures)
	if summary.RecordErrors > 0 {
		yellow.Printf("Record errors: %d\n", summary.RecordErrors)
	}
	fmt.Printf("Duration: %s\n", summary.Duration.Round(time.Millisecond))
	if exported {
		fmt.Printf("CSV: %s\n", cfg.CSVOutputPath)
	}
}
