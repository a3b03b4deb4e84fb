// Command achievekit-server runs the achievement progression HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"achievekit/analytics"
)

func main() {
	ctx := context.Background()

	app, err := BuildApp(ctx)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	app.Logger.Info("starting achievekit server",
		"environment", app.Config.Environment,
		"address", app.Config.Server.Address,
		"storage", app.Config.Storage.Adapter,
		"catalog", app.Config.Catalog.Path,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.Service.Start(runCtx)

	if app.Config.Analytics.ExportEnabled {
		exporter := analytics.NewHTTPExporter(
			app.Config.Analytics.ExportEndpoint,
			app.Config.Analytics.ExportAPIKey,
			app.Config.Analytics.ExportBatch,
		)
		defer exporter.Close()
		go exportLoop(runCtx, app.Logger, app.Metrics, exporter, app.Config.Analytics.ExportInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		app.Logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-sigCh:
		app.Logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("graceful shutdown failed", "error", err)
	}

	cancel()
	app.Service.Stop()
	app.Logger.Info("server stopped")
}

// exportLoop ships KPI summaries on a fixed interval until ctx is cancelled.
func exportLoop(ctx context.Context, logger *slog.Logger, metrics *analytics.Metrics, exporter analytics.Exporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			day := time.Now().UTC().Format("2006-01-02")
			if err := exporter.Export(ctx, metrics.Summarize(day)); err != nil {
				logger.Warn("analytics export failed", "error", err)
			}
		}
	}
}
