package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	languageLabel = "language"
	verdictLabel  = "verdict"
	okLabel       = "ok"
)

// PrometheusRecorder exports sandbox metrics through client_golang.
type PrometheusRecorder struct {
	compiles    *prometheus.CounterVec
	compileTime *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	runTime     *prometheus.HistogramVec
	runMemory   *prometheus.HistogramVec
	outputKB    *prometheus.CounterVec
	slotsInUse  prometheus.Gauge
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "compile_total",
			Help:      "Number of harness compilations by language and result",
		}, []string{languageLabel, okLabel}),
		compileTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "compile_seconds",
			Help:      "CPU time spent compiling harnesses",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{languageLabel}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "run_total",
			Help:      "Number of test executions by language and verdict",
		}, []string{languageLabel, verdictLabel}),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "run_seconds",
			Help:      "CPU time of test executions",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{languageLabel}),
		runMemory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "run_memory_bytes",
			Help:      "Peak memory of test executions",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 11),
		}, []string{languageLabel}),
		outputKB: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "output_kilobytes_total",
			Help:      "Program output produced by test executions",
		}, []string{languageLabel}),
		slotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ojcore",
			Subsystem: "sandbox",
			Name:      "slots_in_use",
			Help:      "Sandbox pool slots currently leased",
		}),
	}
	reg.MustRegister(r.compiles, r.compileTime, r.runs, r.runTime, r.runMemory, r.outputKB, r.slotsInUse)
	return r
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64, memoryKB int64) {
	r.compiles.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
	r.compileTime.WithLabelValues(languageID).Observe(float64(timeMs) / 1000)
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, memoryKB int64, outputKB int64) {
	r.runs.WithLabelValues(languageID, verdict).Inc()
	r.runTime.WithLabelValues(languageID).Observe(float64(timeMs) / 1000)
	r.runMemory.WithLabelValues(languageID).Observe(float64(memoryKB) * 1024)
	r.outputKB.WithLabelValues(languageID).Add(float64(outputKB))
}

func (r *PrometheusRecorder) SlotsInUse(n int) {
	r.slotsInUse.Set(float64(n))
}
