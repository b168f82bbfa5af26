package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder exports matcher and scanner measurements.
type Recorder struct {
	Evaluations   *prometheus.CounterVec
	EvalLatency   *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	BlocksScanned prometheus.Counter
	LastBlock     prometheus.Gauge
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Evaluations counts (transaction, descriptor) evaluations by outcome
		Evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questfilter_evaluations_total",
				Help: "Total number of transaction evaluations",
			},
			[]string{"action", "matched", "reason"},
		),
		EvalLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "questfilter_evaluation_seconds",
				Help:    "Time spent matching one transaction against one descriptor",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"action"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questfilter_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"result"},
		),
		BlocksScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "questfilter_blocks_scanned_total",
			Help: "Total number of blocks scanned",
		}),
		LastBlock: f.NewGauge(prometheus.GaugeOpts{
			Name: "questfilter_last_scanned_block",
			Help: "Highest block whose transactions were matched and stored",
		}),
	}
}

func (r *Recorder) ObserveMatch(action string, matched bool, reason string, elapsed time.Duration) {
	outcome := "false"
	if matched {
		outcome = "true"
	}
	r.Evaluations.WithLabelValues(action, outcome, reason).Inc()
	r.EvalLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveCache(hit bool) {
	if hit {
		r.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.CacheLookups.WithLabelValues("miss").Inc()
}

// ObserveBatch records a stored block range.
func (r *Recorder) ObserveBatch(from, to uint64) {
	r.BlocksScanned.Add(float64(to - from + 1))
	r.LastBlock.Set(float64(to))
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("metrics server listening", zap.String("addr", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}
