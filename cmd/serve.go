package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-tracker/internal/aggregate"
	"github.com/sells-group/sales-tracker/internal/api"
	"github.com/sells-group/sales-tracker/internal/monitoring"
	"github.com/sells-group/sales-tracker/internal/queue"
	"github.com/sells-group/sales-tracker/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verdict webhook, listings and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var stream *queue.Stream
		if cfg.Queue.RedisURL != "" {
			stream, err = queue.Connect(ctx, queueConfig(cfg.Queue))
			if err != nil {
				return err
			}
			defer stream.Close() //nolint:errcheck
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(st, stream, prometheus.DefaultGatherer),
			ReadHeaderTimeout: 10 * time.Second,
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			appMetrics(),
			cfg.Monitoring,
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		if stream != nil {
			g.Go(func() error {
				return runConsumer(gctx, stream, newReviewService(st))
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.Bool("queue", stream != nil))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

// buildRouter wires the API handler. Verdicts are queued when stream is set.
func buildRouter(st store.Store, stream *queue.Stream, gatherer prometheus.Gatherer) http.Handler {
	var opts []api.Option
	if stream != nil {
		opts = append(opts, api.WithPublisher(stream))
	}
	h := api.New(cfg, st, newReviewService(st), aggregate.NewCalculator(st, thresholds(cfg.Metrics)), opts...)
	return api.NewRouter(h, gatherer, cfg.Server.CORSOrigins)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
