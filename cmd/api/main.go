package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/google/uuid"

	"issuepatch/internal/app"
	"issuepatch/internal/config"
	"issuepatch/internal/contextutil"
	"issuepatch/internal/http"
	"issuepatch/internal/service"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ranks the files of a repository by relevance to an issue and proposes
// whole-file patches for the nearest ones.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Issue Patch API
//   description: |
//     Retrieval and patch synthesis for issues on one hosted repository.
//     Files are embedded once and cached; issues are embedded per request.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	if cfg.Repo == "" {
		log.Fatalf("REPO is required (owner/name)")
	}

	ctx := contextutil.WithLogger(context.Background(), logger.With("run_id", uuid.NewString()))

	a, err := app.New(ctx, cfg, app.Overrides{})
	if err != nil {
		log.Fatalf("Failed to initialize retrieval engine: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()
	slog.Info("Retrieval engine initialized", "repo", cfg.Repo, "files", a.Engine.Len(), "backend", cfg.IndexBackend)

	issueService := service.NewIssueService(a.Engine, a.Source, cfg.NumHits)

	router := http.NewRouter(&http.Deps{
		IssueService: issueService,
		HealthChecks: a.HealthChecks(),
	})

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
