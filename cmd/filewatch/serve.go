package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/rohankatakam/filewatch/internal/metrics"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/rohankatakam/filewatch/internal/server"
	"github.com/rohankatakam/filewatch/internal/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	listenAddr    string
	watchInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the watch endpoint over HTTP",
	Long: `Serve the watch endpoint over HTTP.

  GET|POST /api/watch   run one check, 200 on success, 500 on failure
  GET /healthz          checkpoint store reachability
  GET /metrics          prometheus metrics

With --interval the server also runs a check on its own schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default: server.addr from config)")
	serveCmd.Flags().DurationVar(&watchInterval, "interval", 0, "also check on this interval (0 disables)")
}

// configFailure answers every run and health check with the validation error
// so a misconfigured server stays up and says what is wrong
type configFailure struct {
	target   models.Target
	err      error
	observer watcher.Observer
}

func (c configFailure) Run(ctx context.Context) watcher.Result {
	res := watcher.Failed(c.target, c.err)
	if c.observer != nil {
		c.observer.ObserveRun(res, 0)
	}
	return res
}

func (c configFailure) Ping(ctx context.Context) error {
	return c.err
}

// buildServer validates cfg before touching the store or the network. An invalid
// configuration yields a server whose runs fail at the config stage.
func buildServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*server.Server, server.Runner, func(), error) {
	recorder := metrics.NewRecorder()
	opts := server.Options{
		Addr:    cfg.Server.Addr,
		Metrics: recorder.Handler(),
	}

	if err := validateConfig(cfg, logger); err != nil {
		logger.WithError(err).Error("configuration invalid, runs will fail until it is fixed")
		failure := configFailure{target: cfg.Target, err: err, observer: recorder}
		return server.New(opts, failure, failure, logger), failure, func() {}, nil
	}

	w, store, err := newWatcher(ctx, cfg, logger, false)
	if err != nil {
		return nil, nil, nil, err
	}
	w.WithObserver(recorder)

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close store")
		}
	}
	return server.New(opts, w, store, logger), w, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}

	srv, runner, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Listen)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if watchInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(watchInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					runner.Run(gctx)
				}
			}
		})
	}

	return g.Wait()
}
