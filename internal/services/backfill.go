package services

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-review-system/internal/models"
)

// BackfillResult результат обработки одной операции пачки
type BackfillResult struct {
	TransactionID string             `json:"transaction_id"`
	Evaluation    *models.Evaluation `json:"evaluation,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// Backfill обрабатывает независимые операции параллельно, порядок обработки не гарантирован.
// Результаты возвращаются в порядке входа; ошибка одной операции не останавливает остальные.
func (s *EvaluationService) Backfill(ctx context.Context, txs []*models.Transaction) ([]BackfillResult, error) {
	results := make([]BackfillResult, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var failed atomic.Int64
	for i, tx := range txs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if tx != nil {
				results[i].TransactionID = tx.ID
			}
			eval, err := s.ProcessTransaction(gctx, tx)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				return nil
			}
			results[i].Evaluation = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	s.logger.Info("backfill completed",
		zap.Int("total", len(txs)),
		zap.Int64("failed", failed.Load()),
		zap.Int("workers", s.workers),
	)
	return results, nil
}
