package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BatchCollector bundles Prometheus metrics for the evaluation pipeline
// and the handover decision loop.
type BatchCollector struct {
	gatherer prometheus.Gatherer

	SatellitesEvaluated *prometheus.CounterVec
	SatellitesFailed    *prometheus.CounterVec
	EventsEmitted       *prometheus.CounterVec
	Decisions           *prometheus.CounterVec

	VisibleSatellites *prometheus.GaugeVec
	ActiveCandidates  prometheus.Gauge

	BatchDuration     prometheus.Histogram
	SatelliteDuration prometheus.Histogram
}

// NewBatchCollector registers pipeline Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewBatchCollector(reg prometheus.Registerer) (*BatchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handover_satellites_evaluated_total",
		Help: "Satellites run through the evaluation pipeline, labeled by constellation and feasibility outcome.",
	}, []string{"constellation", "feasible"})
	evaluated, err := registerCounterVec(reg, evaluated, "handover_satellites_evaluated_total")
	if err != nil {
		return nil, err
	}

	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handover_satellites_failed_total",
		Help: "Satellites skipped or degraded during evaluation, labeled by failure stage.",
	}, []string{"stage"})
	failed, err = registerCounterVec(reg, failed, "handover_satellites_failed_total")
	if err != nil {
		return nil, err
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handover_measurement_events_total",
		Help: "Measurement events confirmed by the detector, labeled by event type.",
	}, []string{"type"})
	events, err = registerCounterVec(reg, events, "handover_measurement_events_total")
	if err != nil {
		return nil, err
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "handover_decisions_total",
		Help: "Handover decisions emitted per orchestration tick, labeled by action.",
	}, []string{"action"})
	decisions, err = registerCounterVec(reg, decisions, "handover_decisions_total")
	if err != nil {
		return nil, err
	}

	visible := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "handover_visible_satellites",
		Help: "Feasible satellites in the latest batch, labeled by constellation.",
	}, []string{"constellation"})
	visible, err = registerGaugeVec(reg, visible, "handover_visible_satellites")
	if err != nil {
		return nil, err
	}

	candidates, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_active_candidates",
		Help: "Candidates currently held by the candidate manager.",
	}), "handover_active_candidates")
	if err != nil {
		return nil, err
	}

	batchDur, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "handover_batch_duration_seconds",
		Help:    "Wall time of one full evaluation batch.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "handover_batch_duration_seconds")
	if err != nil {
		return nil, err
	}

	satDur, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "handover_satellite_duration_seconds",
		Help:    "Wall time of one per-satellite pipeline run.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	}), "handover_satellite_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &BatchCollector{
		gatherer:            gatherer,
		SatellitesEvaluated: evaluated,
		SatellitesFailed:    failed,
		EventsEmitted:       events,
		Decisions:           decisions,
		VisibleSatellites:   visible,
		ActiveCandidates:    candidates,
		BatchDuration:       batchDur,
		SatelliteDuration:   satDur,
	}, nil
}

// ObserveSatellite records the outcome of one per-satellite pipeline run.
func (c *BatchCollector) ObserveSatellite(constellation string, feasible bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "false"
	if feasible {
		label = "true"
	}
	if c.SatellitesEvaluated != nil {
		c.SatellitesEvaluated.WithLabelValues(constellation, label).Inc()
	}
	if c.SatelliteDuration != nil {
		c.SatelliteDuration.Observe(elapsed.Seconds())
	}
}

// ObserveFailure counts a satellite skipped or degraded at a pipeline stage.
func (c *BatchCollector) ObserveFailure(stage string) {
	if c == nil || c.SatellitesFailed == nil {
		return
	}
	c.SatellitesFailed.WithLabelValues(stage).Inc()
}

// ObserveEvent counts one confirmed measurement event.
func (c *BatchCollector) ObserveEvent(eventType string) {
	if c == nil || c.EventsEmitted == nil {
		return
	}
	c.EventsEmitted.WithLabelValues(eventType).Inc()
}

// ObserveDecision counts one emitted decision.
func (c *BatchCollector) ObserveDecision(action string) {
	if c == nil || c.Decisions == nil {
		return
	}
	c.Decisions.WithLabelValues(action).Inc()
}

// SetVisible publishes the feasible-satellite count for a constellation.
func (c *BatchCollector) SetVisible(constellation string, n int) {
	if c == nil || c.VisibleSatellites == nil {
		return
	}
	c.VisibleSatellites.WithLabelValues(constellation).Set(float64(n))
}

// SetActiveCandidates publishes the candidate-manager population.
func (c *BatchCollector) SetActiveCandidates(n int) {
	if c == nil || c.ActiveCandidates == nil {
		return
	}
	c.ActiveCandidates.Set(float64(n))
}

// ObserveBatch records the wall time of one full batch.
func (c *BatchCollector) ObserveBatch(elapsed time.Duration) {
	if c == nil || c.BatchDuration == nil {
		return
	}
	c.BatchDuration.Observe(elapsed.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BatchCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
