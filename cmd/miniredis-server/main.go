// Command miniredis-server runs the RESP key/value and pub/sub server.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/miniredis/internal/config"
	"github.com/adred-codev/miniredis/internal/logging"
	"github.com/adred-codev/miniredis/internal/rserver"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides MINIREDIS_LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().
		Str("addr", cfg.Addr).
		Int("max_connections", cfg.MaxConnections).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("starting miniredis")

	registry := prometheus.NewRegistry()
	srv := rserver.New(rserver.Config{
		Addr:           cfg.Addr,
		MaxConnections: cfg.MaxConnections,
		BackoffStart:   cfg.BackoffStart,
		BackoffCeiling: cfg.BackoffCeiling,
		CommandRateRPS: cfg.CommandRateRPS,
		CommandBurst:   cfg.CommandBurst,
	}, log, registry)

	go serveMetrics(cfg.MetricsAddr, registry, log)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("signal received, shutting down")
		close(stop)
	}()

	if err := srv.Run(stop); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

// serveMetrics exposes the Prometheus registry on its own HTTP
// listener, separate from the RESP server's raw TCP socket.
func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}
