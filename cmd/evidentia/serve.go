package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/evidentia/internal/logging"
	"github.com/jonathan/evidentia/internal/server"
	"github.com/jonathan/evidentia/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start an HTTP server that exposes the analysis pipeline: synchronous and
streaming analyze, uploads, link fetching, stored reports, demo scenarios and
adversarial content generation.

Reports are stored in Postgres when DATABASE_URL is set, or in SQLite when
--sqlite is given. Without either, reports are returned but not kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}

	f := cmd.Flags()
	f.Int("port", 0, "port to listen on (default 8080)")
	f.String("upload-dir", "", "directory for uploaded files (default uploads)")
	f.String("sqlite", "", "SQLite file for stored reports")
	_ = a.v.BindPFlag("server.port", f.Lookup("port"))
	_ = a.v.BindPFlag("server.upload_dir", f.Lookup("upload-dir"))
	_ = a.v.BindPFlag("storage.sqlite_path", f.Lookup("sqlite"))

	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	cfg := a.cfg

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	reports, err := store.Open(ctx, store.Settings{
		DatabaseURL: cfg.Storage.DatabaseURL,
		SQLitePath:  cfg.Storage.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	if reports == nil {
		logging.Log.Warn("No report store configured; reports will not be persisted")
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Server.Port,
		Runner:    svc.runner,
		Store:     reports,
		Fetcher:   svc.fetcher,
		UploadDir: cfg.Server.UploadDir,
		Status:    statusInfo(cfg),
	})
	if err != nil {
		if reports != nil {
			reports.Close()
		}
		return fmt.Errorf("failed to create server: %w", err)
	}

	logging.Log.WithField("model_configured", svc.runner.HasModel()).
		WithField("search_configured", svc.runner.HasSearch()).
		Info("Evidentia API ready")
	return srv.Start()
}
