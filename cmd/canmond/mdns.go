package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

// startMDNS advertises the metrics endpoint via mDNS and returns a cleanup
// function. The service type is fixed; only the instance name is
// configurable.
const mdnsServiceType = "_canmond._tcp"

// mdnsServer is the slice of *zeroconf.Server startMDNS needs.
type mdnsServer interface {
	Shutdown()
}

func registerMDNS(instance, service, domain string, port int, text []string) (mdnsServer, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// mdnsRegister is a hook for tests (overridden in unit tests).
var mdnsRegister = registerMDNS

func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("canmond-%s", host)
	}
	meta := []string{
		"if=" + cfg.canIf,
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := mdnsRegister(instance, mdnsServiceType, "local.", port, meta)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	// The goroutine owns shutdown: exactly one Shutdown call, whether the
	// context ends first or cleanup runs first.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done) }, nil
}
