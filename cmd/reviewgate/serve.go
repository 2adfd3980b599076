package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/reviewgate/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop with the dashboard and REST API",
	Long: `Poll GitHub on the configured interval and serve the approval dashboard
and the REST API on listen_addr until interrupted.

With --no-poll only the dashboard and API run, which is useful for working
through the pending queue without discovering new pull requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "HTTP listen address (default 127.0.0.1:8000)")
	cmd.Flags().Bool("no-poll", false, "Serve the dashboard and API without polling GitHub")
}

func runServe(cmd *cobra.Command, _ []string) error {
	noPoll, _ := cmd.Flags().GetBool("no-poll")

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.Poll.Interval,
		"repositories", len(cfg.Repositories),
		"dry_run", cfg.DryRun,
	)

	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open database, run migrations and wire the state machine.
	a, err := openApp(ctx, !noPoll)
	if err != nil {
		return err
	}
	defer a.Close()
	slog.Info("database ready", "path", cfg.DBPath)

	// 3. Start the poll loop. A nil Poller disables POST /api/v1/poll.
	var poller httphandler.Poller
	var pollDone <-chan struct{}
	if !noPoll {
		pollSvc, err := a.newPollService()
		if err != nil {
			return err
		}
		go pollSvc.Start(ctx)
		poller = pollSvc
		pollDone = pollSvc.Done()
	} else {
		slog.Info("polling disabled")
	}

	// 4. Build the mux: REST API under /api/v1, dashboard under / and /app.
	logger := slog.Default()
	mux := http.NewServeMux()
	httphandler.NewHandler(a.machine, poller, logger).Register(mux)
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(a.machine, logger))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.Wrap(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 5. Start the HTTP server in a goroutine.
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	// 6. Wait for shutdown signal or a server failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-srvErr:
		if err != nil {
			stop()
			waitPoll(pollDone)
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 7. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 8. Let the in-flight poll cycle drain before the database closes.
	waitPoll(pollDone)

	slog.Info("shutdown complete")
	return nil
}

func waitPoll(done <-chan struct{}) {
	if done != nil {
		<-done
	}
}
