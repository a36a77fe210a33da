package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/internal/config"
	"github.com/obrasai/vigia/internal/scheduler"
	"github.com/obrasai/vigia/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	orchestrator, lifecycle, stats, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	apiServer := server.NewServer(store, orchestrator, lifecycle, stats, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
	}

	// Scheduler runs in-process alongside the API when an interval is set.
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()

	sched := scheduler.New(orchestrator, config.Duration(cfg.Engine.ScheduleInterval, 0), logger)
	go sched.Run(schedCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("servidor iniciado", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "Vigia API listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		stopSched()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("servidor encerrado")
	return nil
}
