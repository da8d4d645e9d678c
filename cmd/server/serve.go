package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/lesson-engine/api"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the JSON API and, when enabled in config, the reminder job.
Shuts down gracefully on SIGINT/SIGTERM, waiting up to 30s for requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if listenAddr != "" {
		a.cfg.Listen = listenAddr
	}

	handler := api.NewHandler(a.sched)
	reminders := api.NewReminderScheduler(handler.Reporter, a.logger, a.cfg.Reminders)
	if err := reminders.Start(); err != nil {
		return err
	}
	defer reminders.Stop()
	handler.Reminders = reminders

	server := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      api.NewRouter(handler, a.cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.cfg.Listen, "database", a.cfg.Database)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
