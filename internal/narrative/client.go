package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"risk-review-system/config"
	"risk-review-system/internal/models"
	"risk-review-system/internal/xerrors"
)

const dependencyName = "narrative-analysis"

// Analyzer анализ текстового описания операции
type Analyzer interface {
	Analyze(ctx context.Context, tx *models.Transaction) (*models.NarrativeResult, error)
}

// Client HTTP клиент сервиса анализа описаний
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.NarrativeConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type analyzeRequest struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	Category      string `json:"category,omitempty"`
	Counterparty  string `json:"counterparty,omitempty"`
}

// Analyze отправляет описание операции на анализ. Любой сбой возвращается
// как DependencyUnavailableError.
func (c *Client) Analyze(ctx context.Context, tx *models.Transaction) (*models.NarrativeResult, error) {
	req := analyzeRequest{
		TransactionID: tx.ID,
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		Description:   tx.Description,
		Category:      tx.Category,
	}
	if tx.Counterparty != nil {
		req.Counterparty = tx.Counterparty.Name
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal narrative request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/narratives/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.DependencyUnavailable(dependencyName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.DependencyUnavailable(dependencyName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, xerrors.DependencyUnavailable(dependencyName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.DependencyUnavailable(dependencyName,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result models.NarrativeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, xerrors.DependencyUnavailable(dependencyName, fmt.Errorf("invalid response: %w", err))
	}

	c.logger.Debug("narrative analyzed",
		zap.String("transaction_id", tx.ID),
		zap.String("risk_level", result.Risks.Level),
		zap.Float64("completeness", result.Completeness),
	)
	return &result, nil
}

var _ Analyzer = (*Client)(nil)
