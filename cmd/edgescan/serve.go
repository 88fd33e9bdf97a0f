package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/metrics"
	transport "github.com/kailas-cloud/edgescan/internal/transport/chi"
	healthuc "github.com/kailas-cloud/edgescan/internal/usecase/health"
	"github.com/kailas-cloud/edgescan/internal/version"
)

var serveHardware bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs and health over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		log.Info("Starting edgescan",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("db_driver", cfg.Database.Driver),
		)
		metrics.RegisterScanMetrics()

		store, err := openStore(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		var hw healthuc.HardwarePinger
		if serveHardware {
			r, err := openRig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open stage: %w", err)
			}
			defer func() { _ = r.close() }()
			hw = r
		}

		srv := transport.NewServer(newRunRepo(store, cfg.Database), healthuc.New(store, hw), log.Named("http"))
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           srv.Router(transport.Auth{Keys: cfg.HTTP.APIKeys, ReadOnlyKeys: cfg.HTTP.ReadOnlyKeys}),
			ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("HTTP server listening", zap.String("addr", httpSrv.Addr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
			log.Info("Received shutdown signal")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown", zap.Error(err))
			return err
		}
		log.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHardware, "hardware", false, "include the stage in health checks")
	rootCmd.AddCommand(serveCmd)
}
