// Command rpcechod serves an echo endpoint through the dispatcher over
// JSON-RPC on HTTP and, optionally, over NATS.
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

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/bjaus/rpcdispatch"
	"github.com/bjaus/rpcdispatch/config"
	"github.com/bjaus/rpcdispatch/jsonrpc"
	"github.com/bjaus/rpcdispatch/metrics"
	"github.com/bjaus/rpcdispatch/natsrpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "rpcechod"
	app.Usage = "serve an echo RPC endpoint over JSON-RPC and NATS"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to the YAML configuration file",
			EnvVar: "RPCECHOD_CONFIG",
		},
		cli.StringFlag{
			Name:  "http-addr",
			Usage: "override http.addr",
		},
		cli.StringFlag{
			Name:   "nats-url",
			Usage:  "override nats.url",
			EnvVar: "NATS_URL",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override log_level (debug, info, warn, error)",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, logger)
	}
	return app
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if c.IsSet("http-addr") {
		cfg.HTTP.Addr = c.String("http-addr")
	}
	if c.IsSet("nats-url") {
		cfg.NATS.URL = c.String("nats-url")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	target, err := cfg.Target.Build()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, d, err := newHandler(cfg, target, reg, logger)
	if err != nil {
		return err
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("rpcechod"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		// Runs after ns.Stop, which waits for pending replies to be flushed.
		defer nc.Close()

		ns := natsrpc.NewServer(nc, d, target,
			natsrpc.WithLogger(logger),
			natsrpc.WithDrainTimeout(shutdownTimeout),
		)
		if err := ns.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := ns.Stop(); err != nil {
				logger.Error("Failed to drain NATS subscriptions", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpcechod listening",
			"addr", cfg.HTTP.Addr,
			"path", cfg.HTTP.Path,
			"target", target.String(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("rpcechod stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler wires the dispatcher, JSON-RPC server and metrics endpoint.
func newHandler(cfg config.Config, target rpcdispatch.Target, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, *rpcdispatch.Dispatcher, error) {
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]rpcdispatch.Option{rpcdispatch.WithLogger(logger)}, m.Options()...)
	d := rpcdispatch.New([]rpcdispatch.Endpoint{newEchoService(target)}, opts...)

	rpcServer, err := jsonrpc.NewServer(d, jsonrpc.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.HTTP.Path, rpcServer)
	if cfg.Metrics.Path != "" {
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return mux, d, nil
}
