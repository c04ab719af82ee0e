package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"

	"risk-review-system/internal/models"
)

func assessmentKey(transactionID string) string {
	return fmt.Sprintf("assessment:%s", transactionID)
}

// SaveAssessment кэширует оценку риска операции
func (c *Client) SaveAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	data, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}
	return c.rdb.Set(ctx, assessmentKey(assessment.TransactionID), data, c.ttl).Err()
}

// GetAssessment получает оценку из кэша, nil без ошибки при промахе
func (c *Client) GetAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error) {
	data, err := c.rdb.Get(ctx, assessmentKey(transactionID)).Bytes()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	var assessment models.RiskAssessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
	}
	return &assessment, nil
}
