// Command relay-server runs the relay protocol server over UDP,
// loading its sandbox table from an ini file and optionally exposing a
// Prometheus /metrics endpoint, grounded in the teacher's
// cmd/cli-server (flag-based, no GUI) generalized from the teacher's
// ad hoc REQ/META/DATA loop to internal/server's engine.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/fsadapter"
	"github.com/iluksbr/filerelay/internal/relaylog"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/sandboxcfg"
	"github.com/iluksbr/filerelay/internal/server"
	"github.com/iluksbr/filerelay/internal/transport/udp"
)

func main() {
	defaults := config.DefaultServerSettings()

	host := flag.String("host", defaults.Host, "Host/IP to bind")
	port := flag.Int("port", defaults.Port, "UDP port to bind")
	sandboxFile := flag.String("sandbox", defaults.SandboxFile, "Path to the (real, alias) sandbox table ini file")
	metricsListen := flag.String("metrics", defaults.MetricsListen, "Address to serve Prometheus metrics on (empty disables)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := logrus.InfoLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	log := relaylog.Component(relaylog.New(os.Stdout, level), "relay-server")

	prefixes, err := sandboxcfg.Load(*sandboxFile)
	if err != nil {
		log.WithError(err).Fatal("loading sandbox table")
	}

	sandbox, err := fsadapter.NewSandbox(prefixes)
	if err != nil {
		log.WithError(err).Fatal("building sandbox")
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	transport, err := udp.Listen(addr)
	if err != nil {
		log.WithError(err).Fatal("binding UDP listener")
	}
	defer transport.Close()
	log.WithField("addr", addr).Info("listening")

	registry := prometheus.NewRegistry()
	metrics := relaymetrics.NewServerMetrics(registry)

	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		log.WithField("addr", *metricsListen).Info("serving metrics")
	}

	srv := server.New(transport, sandbox, metrics, log)
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("server loop exited")
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("shutting down")
	}
}
