package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/internal/metrics"
	"github.com/iamNilotpal/ember/internal/server"
	"github.com/iamNilotpal/ember/pkg/logger"
	"github.com/iamNilotpal/ember/pkg/options"
)

func main() {
	var (
		addr        = flag.String("addr", options.DefaultListenAddr, "address to listen on")
		dataDir     = flag.String("data", options.DefaultDataDir(), "directory holding segment files")
		poolSize    = flag.Int("pool", options.DefaultPoolSize, "number of serving workers")
		metricsAddr = flag.String("metrics-addr", "", "optional address serving prometheus metrics")
		syncWrites  = flag.Bool("sync", false, "fsync after every write")
	)
	flag.Parse()

	log := logger.New("ember-server")
	defer func() {
		syncErr := log.Sync()
		_ = syncErr
	}()

	opts := options.NewDefaultOptions()
	options.WithListenAddr(*addr)(&opts)
	options.WithDataDir(*dataDir)(&opts)
	options.WithPoolSize(*poolSize)(&opts)
	options.WithSyncWrites(*syncWrites)(&opts)

	registry := prometheus.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.OpenShared(ctx, &engine.Config{
		Options: &opts,
		Logger:  log,
		Metrics: metrics.New(registry),
	})
	if err != nil {
		log.Errorw("Failed to open engine", "error", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorw("Metrics endpoint failed", "error", err)
			}
		}()
		log.Infow("Metrics endpoint started", "addr", *metricsAddr)
	}

	srv := server.New(&server.Config{
		Store:    eng,
		Logger:   log,
		PoolSize: opts.PoolSize,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(opts.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		log.Infow("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Errorw("Server failed", "error", err)
		}
	}

	srv.Stop()
	if err := eng.Close(); err != nil {
		log.Errorw("Failed to close engine", "error", err)
		os.Exit(1)
	}
}
