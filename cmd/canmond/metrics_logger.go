package main

import (
	"context"
	"sync"
	"time"

	"github.com/kstaniek/go-socketcan/internal/logging"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				logging.L().Info("metrics_snapshot",
					"rx", snap.Rx,
					"error_frames", snap.ErrorFrames,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
