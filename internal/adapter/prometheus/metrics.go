package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neomorfeo/processiq/internal/domain"
)

// Process lifetimes span hours to weeks.
var lifetimeBuckets = []float64{1, 4, 8, 24, 48, 72, 120, 168, 336, 720}

// Recorder holds the business metric instruments of the process engine.
type Recorder struct {
	TransitionsTotal   *prometheus.CounterVec
	FinalizationsTotal *prometheus.CounterVec
	ProcessLifetime    *prometheus.HistogramVec
	SLAStatusTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// Compile-time check: Recorder implements domain.Metrics.
var _ domain.Metrics = (*Recorder)(nil)

// NewRecorder creates the instruments and registers them, together with the
// Go runtime and process collectors, on a dedicated registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processiq_transitions_total",
			Help: "Total number of applied process transitions.",
		}, []string{"type", "phase_changed", "owner_changed"}),
		FinalizationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processiq_finalizations_total",
			Help: "Total number of finalized processes.",
		}, []string{"type"}),
		ProcessLifetime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "processiq_process_lifetime_hours",
			Help:    "Hours from process start to finalization.",
			Buckets: lifetimeBuckets,
		}, []string{"type"}),
		SLAStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processiq_sla_status_total",
			Help: "SLA statuses observed when reading open processes.",
		}, []string{"type", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		r.TransitionsTotal,
		r.FinalizationsTotal,
		r.ProcessLifetime,
		r.SLAStatusTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) TransitionApplied(typ domain.ProcessType, phaseChanged, ownerChanged bool) {
	r.TransitionsTotal.WithLabelValues(
		string(typ),
		strconv.FormatBool(phaseChanged),
		strconv.FormatBool(ownerChanged),
	).Inc()
}

func (r *Recorder) ProcessFinalized(typ domain.ProcessType, lifetime time.Duration) {
	r.FinalizationsTotal.WithLabelValues(string(typ)).Inc()
	if lifetime < 0 {
		lifetime = 0
	}
	r.ProcessLifetime.WithLabelValues(string(typ)).Observe(lifetime.Hours())
}

func (r *Recorder) SLAObserved(typ domain.ProcessType, status domain.SLAStatus) {
	r.SLAStatusTotal.WithLabelValues(string(typ), string(status)).Inc()
}
