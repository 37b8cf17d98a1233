// Package server provides HTTP server initialization and lifecycle
// management for the Engram daemon.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/engram/internal/config"
	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/metrics"
	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/web/handlers"
)

// Options carries the wired collaborators the server exposes over HTTP.
type Options struct {
	Config      *config.Config
	Store       storage.RecordStore
	Recognition *engine.RecognitionEngine
	Enrichment  *engine.EnrichmentEngine
	Pipeline    *pipeline.Pipeline
	Metrics     *metrics.Registry
}

// securityHeaders adds standard security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start builds the handler stack and starts the HTTP server. It returns the
// actual listen address (useful with port 0 in tests) and the event hub for
// wiring additional broadcasts. The server shuts down when ctx is
// cancelled.
func Start(ctx context.Context, opts Options) (string, *handlers.EventHub, error) {
	cfg := opts.Config

	hub := handlers.NewEventHub()
	go hub.Run()

	api := handlers.NewAPI(opts.Store, opts.Recognition, opts.Enrichment, opts.Pipeline, opts.Metrics, hub)

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("/ws", hub)

	rateLimiter := handlers.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	var handler http.Handler = mux
	handler = handlers.RateLimit(handler, rateLimiter)
	handler = handlers.RequireAuth(handler, cfg)
	handler = securityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown error: %v", err)
		}
		hub.Stop()
	}()

	log.Printf("Engram listening on %s", actualAddr)
	return actualAddr, hub, nil
}
