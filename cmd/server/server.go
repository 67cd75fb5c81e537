package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run serves HTTP, and relays Redis events when configured, until ctx is
// cancelled or a component fails. It always runs cleanup before returning.
func (app *application) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app.serve(ctx, server)
}

func (app *application) serve(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if app.relay != nil {
		g.Go(func() error {
			if err := app.relay.Run(gctx); err != nil {
				return fmt.Errorf("event relay failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")

		timeout := time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Closing the hub first ends websocket sessions, which Shutdown does
		// not wait for.
		app.hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("Server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	cleanupCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(app.config.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	app.cleanup(cleanupCtx)

	if err != nil {
		return err
	}
	app.logger.Info("Server shutdown completed")
	return nil
}
