package main

import (
	"context"
	"fmt"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/config"
	"owner-revenue-scraper/pipeline"
	"owner-revenue-scraper/scraper/console"
	"owner-revenue-scraper/services"
	"owner-revenue-scraper/storage"
	"owner-revenue-scraper/utils"
)

var nowFunc = time.Now

// buildPipeline opens the session store and artifact sinks and assembles
// the run. cleanup closes whatever was opened.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*pipeline.Pipeline, func(), error) {
	sel, err := console.MergeSelectors(cfg.SelectorOverrides)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Debug("cleanup: %v", err)
			}
		}
	}

	kv, err := openKVStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, kv.Close)

	artifacts, err := openBlobSink(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var results storage.ResultWriter
	if cfg.ResultsCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.ResultsCSVPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, w.Close)
		results = w
		logger.Info("Results will also be written to %s", cfg.ResultsCSVPath)
	}

	calendar := console.NewReconciler(sel, logger)
	traverser := console.NewTraverser(sel, console.DefaultTraversalOptions(cfg.OwnersURL), calendar, logger)
	auth := console.NewAuthenticator(sel,
		console.Credentials{LoginURL: cfg.LoginURL, Email: cfg.Email, Password: cfg.Password},
		console.AuthOptions{
			UseSSO:    cfg.UseSSOLogin,
			MFAWait:   cfg.MFAWait,
			AppURLs:   []string{cfg.OwnersURL},
			Artifacts: artifacts,
		},
		logger)

	p := &pipeline.Pipeline{
		Launcher: browser.ChromeLauncher{
			Headless:  cfg.Headless,
			ChromeBin: cfg.ChromeBin,
			Logger:    logger,
		},
		Sessions:    storage.NewSessionStore(kv),
		Auth:        auth,
		Collector:   traverser,
		Sink:        services.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout, logger),
		Results:     results,
		Summary:     services.NewSummaryService(logger),
		Location:    cfg.Location(),
		Now:         nowFunc,
		LaunchRetry: utils.RetryConfig{MaxAttempts: 2, BaseDelay: 2 * time.Second, Logger: logger},
		Logger:      logger,
	}
	return p, cleanup, nil
}

func openKVStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.KVStore, error) {
	switch cfg.SessionStore {
	case "postgres":
		logger.Info("[session] using PostgreSQL store at %s:%s/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
		return storage.NewPostgresStore(ctx, cfg.DSN(), logger)
	default:
		logger.Info("[session] using SQLite store at %s", cfg.SQLitePath)
		return storage.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
}

func openBlobSink(ctx context.Context, cfg *config.Config) (storage.BlobSink, error) {
	switch {
	case cfg.ArtifactS3Bucket != "":
		return storage.NewS3BlobSink(ctx, cfg.ArtifactS3Bucket, cfg.ArtifactS3Prefix)
	case cfg.ArtifactDir != "":
		return storage.NewDirBlobSink(cfg.ArtifactDir)
	default:
		return storage.NopBlobSink{}, nil
	}
}
