package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-review-system/internal/models"
)

func TestCollector_RecordEvaluation(t *testing.T) {
	c := NewCollector()

	assessment := &models.RiskAssessment{
		CompositeScore: 72,
		Layers: map[models.Layer]models.LayerScore{
			models.LayerRules:       {Score: 80, Available: true},
			models.LayerStatistical: {Available: false},
		},
	}
	decision := &models.Decision{RequiresReview: true, ReasonCode: models.ReasonHighRiskScore}

	c.RecordEvaluation(15*time.Millisecond, assessment, decision)
	c.RecordEvaluation(5*time.Millisecond, assessment, decision)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.evaluations.WithLabelValues("HIGH_RISK_SCORE", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.layerUnavailable.WithLabelValues("statistical")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.layerUnavailable.WithLabelValues("rules")))
}

func TestCollector_Review(t *testing.T) {
	c := NewCollector()

	c.ReviewEnqueued(models.PriorityCritical)
	c.ReviewTransition(models.ReviewStatusApproved)
	c.ReviewLatency(time.Hour)
	c.SLABreaches("org-1", 3)
	c.SLABreaches("org-1", 1)
	c.NarrativeFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.reviewsEnqueued.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reviewTransitions.WithLabelValues("APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.slaBreaches.WithLabelValues("org-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.narrativeFailures))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ReviewEnqueued(models.PriorityLow)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `review_items_enqueued_total{priority="low"} 1`)
}
