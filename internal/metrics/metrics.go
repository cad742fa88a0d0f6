package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/go-socketcan/internal/logging"
)

// Prometheus counters for the bus monitor.
var (
	RxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_rx_frames_total",
		Help: "Total CAN frames read from the bus interface.",
	})
	RxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_rx_bytes_total",
		Help: "Total CAN payload bytes read from the bus interface.",
	})
	ErrorFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "can_error_frames_total",
		Help: "Total CAN error frames received, by decoded error class.",
	}, []string{"class"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrRead      = "socketcan_read"
	ErrDecode    = "error_frame_decode"
	ErrConfigure = "socketcan_configure"
)

var (
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Local mirrored counters for periodic logging without scraping the
// Prometheus registry in-process.
var (
	localRx       uint64
	localErrFrame uint64
	localErrors   uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Rx          uint64
	ErrorFrames uint64
	Errors      uint64
}

func Snap() Snapshot {
	return Snapshot{
		Rx:          atomic.LoadUint64(&localRx),
		ErrorFrames: atomic.LoadUint64(&localErrFrame),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

// IncRx counts one received frame of n payload bytes.
func IncRx(n int) {
	RxFrames.Inc()
	RxBytes.Add(float64(n))
	atomic.AddUint64(&localRx, 1)
}

// IncErrorFrame counts one received error frame under its decoded class.
func IncErrorFrame(class string) {
	ErrorFrames.WithLabelValues(class).Inc()
	atomic.AddUint64(&localErrFrame, 1)
}

// IncError counts one operational error under the given subsystem label.
func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return false
	}
	return fn()
}

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
