package history

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-review-system/internal/fraud"
	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
)

// Lookback глубина истории для профилей и похожих операций
const Lookback = 90 * 24 * time.Hour

// ProfileLimit максимум операций в одной выборке
const ProfileLimit = 1000

// Builder собирает снимок истории для детекторов из зеркала учетной книги
type Builder struct {
	repo   storage.HistoryRepository
	rules  fraud.RuleConfig
	logger *zap.Logger
}

func NewBuilder(repo storage.HistoryRepository, rules fraud.RuleConfig, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{repo: repo, rules: rules, logger: logger}
}

// Build возвращает исторический контекст операции. При недоступности хранилища
// возвращается пустой контекст, скоринг продолжается без истории.
func (b *Builder) Build(ctx context.Context, tx *models.Transaction) *fraud.HistoricalContext {
	if b.repo == nil || tx == nil {
		return fraud.EmptyContext()
	}

	hctx, err := b.build(ctx, tx)
	if err != nil {
		b.logger.Warn("historical context unavailable, scoring without history",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return fraud.EmptyContext()
	}
	return hctx
}

func (b *Builder) build(ctx context.Context, tx *models.Transaction) (*fraud.HistoricalContext, error) {
	hctx := &fraud.HistoricalContext{}
	base := storage.HistoryQuery{
		OrganizationID: tx.OrganizationID,
		To:             tx.Date,
		ExcludeID:      tx.ID,
		Limit:          ProfileLimit,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q := base
		q.Type = tx.Type
		q.Category = tx.Category
		q.From = tx.Date.Add(-Lookback)
		txs, err := b.repo.ListTransactions(gctx, q)
		hctx.SimilarTransactions = txs
		return err
	})

	if tx.CreatedBy != "" {
		g.Go(func() error {
			q := base
			q.CreatedBy = tx.CreatedBy
			q.From = tx.Date.Add(-Lookback)
			txs, err := b.repo.ListTransactions(gctx, q)
			if err != nil {
				return err
			}
			hctx.UserProfile = fraud.BuildProfile(txs)
			hctx.ActorTransactions = within(txs, tx.Date.Add(-b.rules.RapidWindow))
			return nil
		})
	}

	if cpID := tx.CounterpartyID(); cpID != "" {
		g.Go(func() error {
			q := base
			q.CounterpartyID = cpID
			q.From = tx.Date.Add(-Lookback)
			txs, err := b.repo.ListTransactions(gctx, q)
			if err != nil {
				return err
			}
			hctx.CounterpartyProfile = fraud.BuildProfile(txs)
			hctx.CounterpartyTransactions = within(txs, tx.Date.Add(-b.searchWindow()))
			return nil
		})
	}

	if taxID := tx.CounterpartyTaxID(); taxID != "" {
		g.Go(func() error {
			activity, err := b.repo.CounterpartyActivity(gctx, tx.OrganizationID, taxID)
			if err != nil {
				return err
			}
			hctx.RelatedCounterparties = related(activity)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hctx, nil
}

func (b *Builder) searchWindow() time.Duration {
	if b.rules.SplitWindow > b.rules.DuplicateWindow {
		return b.rules.SplitWindow
	}
	return b.rules.DuplicateWindow
}

// within операции не раньше from
func within(txs []*models.Transaction, from time.Time) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.Date.Before(from) {
			out = append(out, t)
		}
	}
	return out
}

func related(activity []storage.CounterpartyActivity) []fraud.CounterpartyRecord {
	records := make([]fraud.CounterpartyRecord, 0, len(activity))
	for _, a := range activity {
		direction := fraud.DirectionOf(a.Type)
		if direction == fraud.DirectionNone {
			continue
		}
		records = append(records, fraud.CounterpartyRecord{
			CounterpartyID:   a.CounterpartyID,
			TaxID:            a.TaxID,
			Direction:        direction,
			TransactionCount: a.Count,
		})
	}
	return records
}
