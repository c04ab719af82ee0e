package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"risk-review-system/internal/models"
)

// Collector метрики скоринга и очереди проверки на собственном реестре
type Collector struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	compositeScore     prometheus.Histogram
	layerUnavailable   *prometheus.CounterVec
	narrativeFailures  prometheus.Counter

	reviewsEnqueued   *prometheus.CounterVec
	reviewTransitions *prometheus.CounterVec
	reviewLatency     prometheus.Histogram
	slaBreaches       *prometheus.GaugeVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_evaluations_total",
			Help: "Total number of evaluated transactions by decision reason",
		}, []string{"reason_code", "requires_review"}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_evaluation_duration_seconds",
			Help:    "Time taken to score and decide a transaction",
			Buckets: prometheus.DefBuckets,
		}),
		compositeScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_composite_score",
			Help:    "Distribution of composite risk scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		layerUnavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_layer_unavailable_total",
			Help: "Detector layers that failed and were skipped",
		}, []string{"layer"}),
		narrativeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_narrative_failures_total",
			Help: "Narrative analysis calls that failed",
		}),
		reviewsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "review_items_enqueued_total",
			Help: "Review items created by priority",
		}, []string{"priority"}),
		reviewTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "review_transitions_total",
			Help: "Review item state transitions by target status",
		}, []string{"status"}),
		reviewLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "review_decision_latency_seconds",
			Help:    "Time from enqueue to final decision",
			Buckets: []float64{60, 300, 900, 3600, 4 * 3600, 24 * 3600, 72 * 3600},
		}),
		slaBreaches: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "review_sla_breaches",
			Help: "Open review items past their due date",
		}, []string{"organization_id"}),
	}
}

// RecordEvaluation учитывает одну оценку операции
func (c *Collector) RecordEvaluation(duration time.Duration, assessment *models.RiskAssessment, decision *models.Decision) {
	c.evaluationDuration.Observe(duration.Seconds())
	if assessment != nil {
		c.compositeScore.Observe(float64(assessment.CompositeScore))
		for layer, score := range assessment.Layers {
			if !score.Available {
				c.layerUnavailable.WithLabelValues(string(layer)).Inc()
			}
		}
	}
	if decision != nil {
		review := "false"
		if decision.RequiresReview {
			review = "true"
		}
		c.evaluations.WithLabelValues(string(decision.ReasonCode), review).Inc()
	}
}

func (c *Collector) NarrativeFailed() { c.narrativeFailures.Inc() }

func (c *Collector) ReviewEnqueued(priority models.Priority) {
	c.reviewsEnqueued.WithLabelValues(string(priority)).Inc()
}

func (c *Collector) ReviewTransition(status models.ReviewStatus) {
	c.reviewTransitions.WithLabelValues(string(status)).Inc()
}

func (c *Collector) ReviewLatency(latency time.Duration) {
	c.reviewLatency.Observe(latency.Seconds())
}

func (c *Collector) SLABreaches(organizationID string, count int) {
	c.slaBreaches.WithLabelValues(organizationID).Set(float64(count))
}

// Registry реестр для тестов и дополнительных коллекторов
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler HTTP обработчик /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
