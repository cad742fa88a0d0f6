// canmond is a CAN bus monitor daemon. It binds to a SocketCAN interface,
// decodes the error frames the kernel reports, and exposes traffic and bus
// health counters over Prometheus, optionally advertising the metrics
// endpoint via mDNS.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/go-socketcan/internal/logging"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("canmond %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := logging.New(cfg.logFormat, cfg.logLevel, os.Stderr).With("app", "canmond")
	logging.Set(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, &wg)

	cleanup, err := startMonitor(ctx, cfg, &wg)
	if err != nil {
		l.Error("monitor_init_error", "error", err)
		os.Exit(1)
	}

	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()

		if cfg.mdnsEnable {
			port := 0
			if _, p, err := net.SplitHostPort(cfg.metricsAddr); err == nil {
				port, _ = strconv.Atoi(p)
			}
			cleanupMDNS, err := startMDNS(ctx, cfg, port)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
			} else {
				l.Info("mdns_started", "service", mdnsServiceType, "port", port)
				defer cleanupMDNS()
			}
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	wg.Wait()
	cleanup()
}
