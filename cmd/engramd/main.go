package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/engram/internal/backup"
	"github.com/scrypster/engram/internal/config"
	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/llm"
	"github.com/scrypster/engram/internal/metrics"
	"github.com/scrypster/engram/internal/notify"
	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/internal/server"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/internal/storage/postgres"
	"github.com/scrypster/engram/internal/storage/sqlite"
)

func main() {
	profilePath := flag.String("profile", "", "Path to the pipeline profile (overrides ENGRAM_PIPELINE_PROFILE)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *profilePath != "" {
		cfg.Pipeline.ProfilePath = *profilePath
	}

	store, vectors, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	caller, err := buildCaller(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM caller: %v", err)
	}

	retriever := engine.NewRetriever(store, vectors)
	recognition := engine.NewRecognitionEngine(retriever, nil, caller)
	enrichment := engine.NewEnrichmentEngine(store, caller)

	registry := pipeline.NewRegistry()
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

	watcher := notify.NewProfileWatcher(cfg.Pipeline.ProfilePath, func() {
		reloaded, err := pipeline.LoadProfile(cfg.Pipeline.ProfilePath)
		if err != nil {
			log.Printf("ERROR: profile reload failed: %v", err)
			return
		}
		if err := pipe.Reload(reloaded, registry); err != nil {
			log.Printf("ERROR: profile reload failed: %v", err)
			return
		}
		log.Printf("Pipeline profile reloaded from %s", cfg.Pipeline.ProfilePath)
	})
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: profile hot reload disabled: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Backup.Dir != "" && cfg.Storage.Engine == "sqlite" {
		snapshotter := backup.NewSnapshotter(backup.Config{
			SourcePath: cfg.Storage.SQLitePath,
			Dir:        cfg.Backup.Dir,
			Keep:       cfg.Backup.Keep,
		})
		go snapshotter.Run(ctx, cfg.Backup.Interval)
	}

	addr, _, err := server.Start(ctx, server.Options{
		Config:      cfg,
		Store:       store,
		Recognition: recognition,
		Enrichment:  enrichment,
		Pipeline:    pipe,
		Metrics:     metrics.NewRegistry(),
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Engram running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured record store and, for Postgres with
// vectors enabled, the vector scope backed by the same store.
func openStore(cfg *config.Config) (storage.RecordStore, storage.VectorScope, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.NewRecordStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.EnableVector {
			return store, store, nil
		}
		return store, nil, nil
	default:
		store, err := sqlite.NewRecordStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// buildCaller wires the configured provider behind the rate limiter. The
// "none" provider disables LLM disambiguation and consolidation entirely.
func buildCaller(cfg *config.Config) (llm.Caller, error) {
	if cfg.LLM.Provider == "none" {
		return nil, nil
	}

	providerCfg := llm.ProviderConfig{Provider: cfg.LLM.Provider}
	switch cfg.LLM.Provider {
	case "openai":
		providerCfg.APIKey = cfg.LLM.OpenAIAPIKey
		providerCfg.Model = cfg.LLM.OpenAIModel
	case "anthropic":
		providerCfg.APIKey = cfg.LLM.AnthropicAPIKey
		providerCfg.Model = cfg.LLM.AnthropicModel
	default:
		providerCfg.BaseURL = cfg.LLM.OllamaURL
		providerCfg.Model = cfg.LLM.OllamaModel
	}

	inner, err := llm.NewCaller(providerCfg)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedCaller(inner, llm.RatePolicy{
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxConcurrent:     cfg.LLM.MaxConcurrent,
	}), nil
}
