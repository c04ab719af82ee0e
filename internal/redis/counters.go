package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"risk-review-system/internal/models"
)

// счетчики решений хранятся двое суток
const counterTTL = 48 * time.Hour

func decisionKey(organizationID string, day time.Time) string {
	return fmt.Sprintf("decisions:%s:%s", organizationID, day.UTC().Format("2006-01-02"))
}

// IncrementDecision увеличивает дневной счетчик решений политики по коду причины
func (c *Client) IncrementDecision(ctx context.Context, organizationID string, reason models.ReasonCode, at time.Time) error {
	key := decisionKey(organizationID, at)
	pipe := c.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, string(reason), 1)
	pipe.Expire(ctx, key, counterTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// DecisionCounts счетчики решений организации за день
func (c *Client) DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error) {
	raw, err := c.rdb.HGetAll(ctx, decisionKey(organizationID, day)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[models.ReasonCode]int64, len(raw))
	for reason, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s=%q: %w", reason, value, err)
		}
		counts[models.ReasonCode(reason)] = n
	}
	return counts, nil
}
