package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-socketcan"
)

type appConfig struct {
	canIf           string
	errorMask       uint
	filters         string
	joinFilters     bool
	dumpFrames      bool
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	canIf := flag.String("can-if", "can0", "SocketCAN interface to monitor")
	errorMask := flag.Uint("error-mask", socketcan.ErrorMaskAll, "CAN error mask (0 disables error frame reporting)")
	filters := flag.String("filters", "", "Acceptance filters as hex id:mask pairs, comma separated (e.g. 100:7FF,200:7FF); empty keeps the accept-all default")
	joinFilters := flag.Bool("join-filters", false, "Require frames to match all filters instead of any")
	dumpFrames := flag.Bool("dump", false, "Log every received data frame")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise the metrics endpoint via mDNS/Avahi")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default canmond-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.canIf = *canIf
	cfg.errorMask = *errorMask
	cfg.filters = *filters
	cfg.joinFilters = *joinFilters
	cfg.dumpFrames = *dumpFrames
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open devices or listeners, only checks values and ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.canIf == "" {
		return errors.New("can-if must not be empty")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.errorMask > socketcan.ErrMask {
		return fmt.Errorf("error-mask 0x%X exceeds 29 bits", c.errorMask)
	}
	if _, err := parseFilters(c.filters); err != nil {
		return err
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	if c.mdnsEnable && c.metricsAddr == "" {
		return errors.New("mdns-enable requires metrics-addr")
	}
	return nil
}

// parseFilters parses a comma separated list of hex id:mask pairs. An empty
// string means no filter call at all (kernel accept-all default), which is
// different from installing an empty filter list.
func parseFilters(s string) ([]socketcan.Filter, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	filters := make([]socketcan.Filter, 0, len(parts))
	for _, p := range parts {
		idPart, maskPart, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q: want id:mask", p)
		}
		id, err := strconv.ParseUint(idPart, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid filter id %q: %w", idPart, err)
		}
		mask, err := strconv.ParseUint(maskPart, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid filter mask %q: %w", maskPart, err)
		}
		filters = append(filters, socketcan.Filter{ID: uint32(id), Mask: uint32(mask)})
	}
	return filters, nil
}

// applyEnvOverrides maps CANMOND_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored;
// durations use Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["can-if"]; !ok {
		if v, ok := get("CANMOND_IF"); ok && v != "" {
			c.canIf = v
		}
	}
	if _, ok := set["error-mask"]; !ok {
		if v, ok := get("CANMOND_ERROR_MASK"); ok && v != "" {
			if n, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 32); err == nil {
				c.errorMask = uint(n)
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CANMOND_ERROR_MASK: %w", err)
			}
		}
	}
	if _, ok := set["filters"]; !ok {
		if v, ok := get("CANMOND_FILTERS"); ok && v != "" {
			c.filters = v
		}
	}
	if _, ok := set["join-filters"]; !ok {
		if v, ok := get("CANMOND_JOIN_FILTERS"); ok && v != "" {
			c.joinFilters = parseBool(v, c.joinFilters)
		}
	}
	if _, ok := set["dump"]; !ok {
		if v, ok := get("CANMOND_DUMP"); ok && v != "" {
			c.dumpFrames = parseBool(v, c.dumpFrames)
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CANMOND_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CANMOND_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CANMOND_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("CANMOND_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CANMOND_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CANMOND_MDNS_ENABLE"); ok && v != "" {
			c.mdnsEnable = parseBool(v, c.mdnsEnable)
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CANMOND_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
