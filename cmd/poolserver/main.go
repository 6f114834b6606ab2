// Command poolserver serves a tiny static site over raw TCP, running every
// connection as one job on a fixed-size worker pool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/fluxorio/poolserver/pkg/core"
	"github.com/fluxorio/poolserver/pkg/core/concurrency"
	"github.com/fluxorio/poolserver/pkg/observability/otel"
	"github.com/fluxorio/poolserver/pkg/observability/prometheus"
	"github.com/fluxorio/poolserver/pkg/site"
	"github.com/fluxorio/poolserver/pkg/tcp"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("poolserver: %v", err)
	}
}

type flags struct {
	configPath string
	addr       string
	workers    int
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("poolserver", flag.ContinueOnError)
	f := &flags{}
	fs.StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "path to a YAML or JSON config file")
	fs.StringVar(&f.addr, "addr", "", "listen address, overrides server.addr")
	fs.IntVar(&f.workers, "workers", 0, "worker count, overrides pool.workers")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// buildConfig resolves flags, file and environment into one AppConfig.
// Flags win over the environment, which wins over the file.
func buildConfig(args []string) (*AppConfig, error) {
	f, err := parseFlags(args)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.workers != 0 {
		cfg.Pool.Workers = f.workers
	}
	return cfg, nil
}

// newLogger builds the configured logger. Text goes to out and errOut split
// by severity; JSON goes to out only.
func newLogger(cfg LogConfig, out, errOut io.Writer) (core.Logger, error) {
	level, err := core.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return core.NewJSONLoggerTo(out, level), nil
	}
	return core.NewDefaultLoggerTo(out, errOut, level), nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := buildConfig(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	logger = logger.WithFields(map[string]interface{}{"service": "poolserver", "version": version})

	if cfg.Tracing.Enabled {
		if err := otel.Initialize(ctx, otel.Config{
			ServiceName:    "poolserver",
			ServiceVersion: version,
			Exporter:       cfg.Tracing.Exporter,
			SampleRate:     cfg.Tracing.SampleRate,
		}); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := otel.Shutdown(sctx); err != nil {
				logger.Warnf("failed to flush traces: %v", err)
			}
		}()
	}

	restart, err := concurrency.ParseRestartPolicy(cfg.Pool.Restart)
	if err != nil {
		return err
	}

	var (
		metrics *prometheus.Metrics
		reg     *promclient.Registry
	)
	poolOpts := []concurrency.Option{
		concurrency.WithName(cfg.Pool.Name),
		concurrency.WithLogger(logger),
		concurrency.WithRestartPolicy(restart),
	}
	if cfg.Metrics.Enabled {
		var registerer promclient.Registerer
		reg, registerer = prometheus.NewRegistry()
		metrics = prometheus.NewMetrics(registerer)
		poolOpts = append(poolOpts, concurrency.WithObserver(metrics.PoolObserver(cfg.Pool.Name)))
	}

	pool, err := concurrency.NewPool(cfg.Pool.Workers, poolOpts...)
	if err != nil {
		return err
	}
	// Safe to repeat; the shutdown path below normally gets there first.
	defer pool.Shutdown()

	siteCfg := site.Config{
		PublicDir: cfg.Site.PublicDir,
		SlowDelay: cfg.Site.SlowDelay,
		Logger:    logger,
	}
	if metrics != nil {
		siteCfg.Recorder = metrics
	}
	handler, err := site.NewHandler(siteCfg)
	if err != nil {
		return err
	}

	server := tcp.NewTCPServer(pool, &tcp.TCPServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		AcceptLimit:  cfg.Server.AcceptLimit,
		Logger:       logger,
	})
	server.Use(tcp.AccessLog(logger))
	if cfg.Server.RecoverPanics {
		server.Use(tcp.Recovery(logger))
	}
	server.SetHandler(handler.Handle)

	var metricsLn net.Listener
	if metrics != nil {
		if err := metrics.RegisterPool(pool); err != nil {
			return err
		}
		if err := metrics.RegisterServer(server); err != nil {
			return err
		}
		metricsLn, err = net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if metricsLn != nil {
		msrv := prometheus.NewServer(reg)
		logger.Infof("metrics listening on http://%s/metrics", metricsLn.Addr())
		g.Go(func() error { return msrv.Serve(metricsLn) })
		defer func() {
			_ = msrv.Shutdown()
		}()
	}

	logger.Infof("pool %q started with %d workers", pool.Name(), pool.Size())

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("shutting down")
		case <-server.Done():
			logger.Info("server stopped accepting, shutting down")
		}
		_ = server.Stop()

		logger.Info("Shutting down all workers.")
		pool.Shutdown()

		if metricsLn != nil {
			_ = metricsLn.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
