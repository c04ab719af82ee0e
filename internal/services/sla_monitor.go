package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
)

// BreachLister источник просроченных элементов (workflow.Manager)
type BreachLister interface {
	SLABreaches(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error)
}

// SLAMonitor периодически проверяет сроки открытых элементов организаций.
// Нарушение фиксируется метрикой и логом, состояние элемента не меняется.
type SLAMonitor struct {
	lister        BreachLister
	organizations []string
	interval      time.Duration
	logger        *zap.Logger
}

func NewSLAMonitor(lister BreachLister, organizations []string, interval time.Duration, log *zap.Logger) *SLAMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SLAMonitor{lister: lister, organizations: organizations, interval: interval, logger: log}
}

// Run блокируется до отмены контекста
func (m *SLAMonitor) Run(ctx context.Context) {
	if len(m.organizations) == 0 {
		m.logger.Info("SLA monitor disabled: no organizations configured")
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce одна проверка всех организаций, возвращает число нарушений
func (m *SLAMonitor) CheckOnce(ctx context.Context) int {
	total := 0
	for _, org := range m.organizations {
		breached, err := m.lister.SLABreaches(ctx, org)
		if err != nil {
			m.logger.Error("SLA check failed", zap.String("organization_id", org), zap.Error(err))
			continue
		}
		total += len(breached)
		for _, item := range breached {
			logger.LogEvent(logger.EventSLABreached, "risk-review-service", "workflow", map[string]interface{}{
				"review_id":       item.ID,
				"organization_id": org,
				"due_date":        item.DueDate.Format(time.RFC3339),
			})
		}
	}
	return total
}
