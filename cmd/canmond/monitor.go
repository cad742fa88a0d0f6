package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-socketcan"
	"github.com/kstaniek/go-socketcan/internal/logging"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

const (
	rxBackoffMin = 20 * time.Millisecond
	rxBackoffMax = 500 * time.Millisecond

	// rxReadTimeout bounds each blocking read so the loop observes
	// cancellation on an idle bus instead of parking in read(2) forever.
	rxReadTimeout = 500 * time.Millisecond
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// busDevice is the slice of *socketcan.Socket the monitor needs.
// Narrow so tests can substitute a fake.
type busDevice interface {
	Read() (socketcan.Frame, time.Time, error)
	SetErrorMask(mask uint32) error
	SetFilters(filters []socketcan.Filter) error
	SetJoinFilters(enabled bool) error
	SetReadTimeout(d time.Duration) error
	Close() error
}

// openBus is a hook for tests (overridden in unit tests).
var openBus = func(iface string) (busDevice, error) { return socketcan.Open(iface) }

// startMonitor opens and configures the socket and launches the RX loop.
// The read timeout turns an idle bus into periodic retryable ticks, so the
// loop exits within one timeout of cancellation. Call the returned cleanup
// after the loop has stopped; it closes the socket.
func startMonitor(ctx context.Context, cfg *appConfig, wg *sync.WaitGroup) (func(), error) {
	l := logging.L()
	dev, err := openBus(cfg.canIf)
	if err != nil {
		return nil, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	if err := dev.SetErrorMask(uint32(cfg.errorMask)); err != nil {
		_ = dev.Close()
		metrics.IncError(metrics.ErrConfigure)
		return nil, fmt.Errorf("set error mask: %w", err)
	}
	filters, err := parseFilters(cfg.filters)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	if filters != nil {
		if err := dev.SetFilters(filters); err != nil {
			_ = dev.Close()
			metrics.IncError(metrics.ErrConfigure)
			return nil, fmt.Errorf("set filters: %w", err)
		}
	}
	if cfg.joinFilters {
		if err := dev.SetJoinFilters(true); err != nil {
			_ = dev.Close()
			metrics.IncError(metrics.ErrConfigure)
			return nil, fmt.Errorf("set join filters: %w", err)
		}
	}
	if err := dev.SetReadTimeout(rxReadTimeout); err != nil {
		_ = dev.Close()
		metrics.IncError(metrics.ErrConfigure)
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	l.Info("socketcan_open", "if", cfg.canIf, "error_mask", fmt.Sprintf("0x%X", cfg.errorMask), "filters", len(filters))

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		rxLoop(ctx, cfg, dev)
	}()
	return func() { _ = dev.Close() }, nil
}

func rxLoop(ctx context.Context, cfg *appConfig, dev busDevice) {
	l := logging.L()
	backoff := rxBackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		fr, ts, err := dev.Read()
		if err != nil {
			if ctx.Err() != nil { // shutting down
				return
			}
			if socketcan.ShouldRetry(err) { // read timeout tick on an idle bus
				continue
			}
			metrics.IncError(metrics.ErrRead)
			l.Warn("socketcan_read_error", "error", err, "backoff", backoff)
			sleepFn(backoff)
			backoff *= 2
			if backoff > rxBackoffMax {
				backoff = rxBackoffMax
			}
			continue
		}
		backoff = rxBackoffMin
		metrics.IncRx(fr.Len())
		if fr.IsError() {
			handleErrorFrame(l, fr, ts)
			continue
		}
		if cfg.dumpFrames {
			l.Info("frame", "data", fr.Dump(), "ts", ts)
		}
	}
}

func handleErrorFrame(l *slog.Logger, fr socketcan.Frame, ts time.Time) {
	report, err := socketcan.DecodeError(fr)
	if err != nil {
		metrics.IncError(metrics.ErrDecode)
		l.Warn("error_frame_undecodable", "frame", fr.Dump(), "error", err)
		return
	}
	metrics.IncErrorFrame(classLabel(report))
	l.Warn("bus_error", "class", classLabel(report), "report", report.Error(), "ts", ts)
}

// classLabel maps a decoded bus error to a stable metrics label.
func classLabel(e socketcan.BusError) string {
	switch e.(type) {
	case socketcan.TransmitTimeout:
		return "tx_timeout"
	case socketcan.LostArbitration:
		return "lost_arbitration"
	case socketcan.ControllerProblemError:
		return "controller"
	case socketcan.ProtocolViolation:
		return "protocol"
	case socketcan.TransceiverFault:
		return "transceiver"
	case socketcan.NoAck:
		return "no_ack"
	case socketcan.BusOff:
		return "bus_off"
	case socketcan.BusFault:
		return "bus_error"
	case socketcan.Restarted:
		return "restarted"
	}
	return "unknown"
}
