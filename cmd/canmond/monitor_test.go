package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-socketcan"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// fakeDev records configuration calls and serves canned reads.
type fakeDev struct {
	mu        sync.Mutex
	mask      uint32
	filters   []socketcan.Filter
	join      bool
	readTO    time.Duration
	closed    bool
	maskErr   error
	readFn    func() (socketcan.Frame, time.Time, error)
	readCalls int
}

func (f *fakeDev) Read() (socketcan.Frame, time.Time, error) {
	f.mu.Lock()
	f.readCalls++
	f.mu.Unlock()
	if f.readFn != nil {
		return f.readFn()
	}
	return socketcan.Frame{}, time.Time{}, io.EOF
}

func (f *fakeDev) SetErrorMask(mask uint32) error {
	f.mu.Lock()
	f.mask = mask
	f.mu.Unlock()
	return f.maskErr
}

func (f *fakeDev) SetFilters(filters []socketcan.Filter) error {
	f.mu.Lock()
	f.filters = filters
	f.mu.Unlock()
	return nil
}

func (f *fakeDev) SetJoinFilters(enabled bool) error {
	f.mu.Lock()
	f.join = enabled
	f.mu.Unlock()
	return nil
}

func (f *fakeDev) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	f.readTO = d
	f.mu.Unlock()
	return nil
}

func (f *fakeDev) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestStartMonitor_ConfiguresDevice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev := &fakeDev{}
	openBus = func(iface string) (busDevice, error) { return dev, nil }
	defer func() { openBus = func(iface string) (busDevice, error) { return socketcan.Open(iface) } }()
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = time.Sleep }()

	cfg := &appConfig{
		canIf:       "vcan0",
		errorMask:   0x20,
		filters:     "100:7FF,200:700",
		joinFilters: true,
	}
	var wg sync.WaitGroup
	cleanup, err := startMonitor(ctx, cfg, &wg)
	if err != nil {
		t.Fatalf("startMonitor: %v", err)
	}
	cancel()
	wg.Wait()
	cleanup()

	if dev.mask != 0x20 {
		t.Fatalf("expected error mask 0x20 got 0x%X", dev.mask)
	}
	if len(dev.filters) != 2 || dev.filters[0] != (socketcan.Filter{ID: 0x100, Mask: 0x7FF}) {
		t.Fatalf("unexpected filters %+v", dev.filters)
	}
	if !dev.join {
		t.Fatalf("expected join filters enabled")
	}
	if dev.readTO != rxReadTimeout {
		t.Fatalf("expected read timeout %v got %v", rxReadTimeout, dev.readTO)
	}
	if !dev.closed {
		t.Fatalf("expected device closed by cleanup")
	}
}

func TestStartMonitor_ConfigureFailureClosesDevice(t *testing.T) {
	dev := &fakeDev{maskErr: errors.New("boom")}
	openBus = func(iface string) (busDevice, error) { return dev, nil }
	defer func() { openBus = func(iface string) (busDevice, error) { return socketcan.Open(iface) } }()

	var wg sync.WaitGroup
	before := metrics.Snap()
	_, err := startMonitor(context.Background(), &appConfig{canIf: "vcan0", errorMask: 1}, &wg)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !dev.closed {
		t.Fatalf("expected device closed after configure failure")
	}
	if got := metrics.Snap().Errors - before.Errors; got != 1 {
		t.Fatalf("expected 1 configure error counted, got %d", got)
	}
}

func TestRxLoopBackoffProgression(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev := &fakeDev{readFn: func() (socketcan.Frame, time.Time, error) {
		return socketcan.Frame{}, time.Time{}, io.ErrNoProgress
	}}

	var mu sync.Mutex
	var seen []time.Duration
	sleepFn = func(d time.Duration) {
		mu.Lock()
		if len(seen) < 6 { // capture first few entries
			seen = append(seen, d)
			if len(seen) == 6 {
				cancel()
			}
		}
		mu.Unlock()
	}
	defer func() { sleepFn = time.Sleep }()

	rxLoop(ctx, &appConfig{}, dev)

	if len(seen) < 3 {
		t.Fatalf("expected at least 3 backoff samples, got %d", len(seen))
	}
	// Validate non-decreasing, starts at min, and never exceeds max.
	prev := rxBackoffMin / 4 // allow first comparison
	for i, d := range seen {
		if d < prev {
			t.Fatalf("backoff decreased at %d: prev=%v cur=%v", i, prev, d)
		}
		if d > rxBackoffMax {
			t.Fatalf("backoff exceeded max at %d: %v > %v", i, d, rxBackoffMax)
		}
		prev = d
	}
	if seen[0] != rxBackoffMin {
		t.Fatalf("expected first backoff %v got %v", rxBackoffMin, seen[0])
	}
}

func TestRxLoopCountsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fr, err := socketcan.NewFrame(0x123, []byte{1, 2, 3}, false, false)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	var calls int
	dev := &fakeDev{readFn: func() (socketcan.Frame, time.Time, error) {
		calls++
		if calls > 3 {
			cancel()
			return socketcan.Frame{}, time.Time{}, io.EOF
		}
		return fr, time.Now(), nil
	}}
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = time.Sleep }()

	before := metrics.Snap()
	rxLoop(ctx, &appConfig{dumpFrames: true}, dev)
	after := metrics.Snap()
	if got := after.Rx - before.Rx; got != 3 {
		t.Fatalf("expected 3 rx frames counted, got %d", got)
	}
}

func TestHandleErrorFrame_CountsByClass(t *testing.T) {
	fr, err := socketcan.NewFrame(0x40, make([]byte, 8), false, true)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	before := metrics.Snap()
	handleErrorFrame(slog.Default(), fr, time.Now())
	after := metrics.Snap()
	if got := after.ErrorFrames - before.ErrorFrames; got != 1 {
		t.Fatalf("expected 1 error frame counted, got %d", got)
	}
}

func TestHandleErrorFrame_UndecodableCounted(t *testing.T) {
	// Class bits outside the known taxonomy.
	fr, err := socketcan.NewFrame(0x400, make([]byte, 8), false, true)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	before := metrics.Snap()
	handleErrorFrame(slog.Default(), fr, time.Now())
	after := metrics.Snap()
	if got := after.Errors - before.Errors; got != 1 {
		t.Fatalf("expected 1 decode error counted, got %d", got)
	}
	if after.ErrorFrames != before.ErrorFrames {
		t.Fatalf("undecodable frame must not count as classified")
	}
}

func TestClassLabel(t *testing.T) {
	tests := []struct {
		e    socketcan.BusError
		want string
	}{
		{socketcan.TransmitTimeout{}, "tx_timeout"},
		{socketcan.LostArbitration{Bit: 5}, "lost_arbitration"},
		{socketcan.ControllerProblemError{}, "controller"},
		{socketcan.ProtocolViolation{}, "protocol"},
		{socketcan.TransceiverFault{}, "transceiver"},
		{socketcan.NoAck{}, "no_ack"},
		{socketcan.BusOff{}, "bus_off"},
		{socketcan.BusFault{}, "bus_error"},
		{socketcan.Restarted{}, "restarted"},
	}
	for _, tc := range tests {
		if got := classLabel(tc.e); got != tc.want {
			t.Fatalf("classLabel(%T) = %q want %q", tc.e, got, tc.want)
		}
	}
}
