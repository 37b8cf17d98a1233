// Command engram-import bulk-loads markdown documents through the
// ingestion pipeline, so imported files get the same filtering, tagging,
// deduplication, and consolidation as items arriving over the API.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/scrypster/engram/internal/config"
	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/importer"
	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/internal/storage/postgres"
	"github.com/scrypster/engram/internal/storage/sqlite"
)

func main() {
	dir := flag.String("dir", "", "Directory of markdown files to import (required)")
	dataType := flag.String("type", "note", "Fallback data type for files without a type in front matter")
	tenant := flag.String("tenant", "default", "Tenant to stamp on imported items")
	profilePath := flag.String("profile", "", "Path to the pipeline profile (overrides ENGRAM_PIPELINE_PROFILE)")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *profilePath != "" {
		cfg.Pipeline.ProfilePath = *profilePath
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	registry := pipeline.NewRegistry()
	recognition := engine.NewRecognitionEngine(engine.NewRetriever(store, nil), nil, nil)
	if err := pipeline.RegisterBuiltins(registry, pipeline.Deps{
		Recognition: recognition,
		Store:       store,
	}); err != nil {
		log.Fatalf("Failed to register pipeline processors: %v", err)
	}

	profile, err := pipeline.LoadProfile(cfg.Pipeline.ProfilePath)
	if err != nil {
		log.Fatalf("Failed to load pipeline profile: %v", err)
	}
	pipe, err := pipeline.New(profile, registry)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	imp := importer.New(pipe)
	imp.DataType = *dataType
	imp.TenantID = *tenant

	stats, err := imp.ImportDir(context.Background(), *dir)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Imported %d files: %d stored, %d dropped, %d skipped",
		stats.Files, stats.Stored, stats.Dropped, stats.Skipped)
}

func openStore(cfg *config.Config) (storage.RecordStore, error) {
	if cfg.Storage.Engine == "postgres" {
		return postgres.NewRecordStore(cfg.Storage.PostgresDSN)
	}
	return sqlite.NewRecordStore(cfg.Storage.SQLitePath)
}
