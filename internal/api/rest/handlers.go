package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-review-system/internal/generator"
	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
	"risk-review-system/internal/services"
	"risk-review-system/internal/xerrors"
)

const serviceName = "risk-review-service"

// Generator источник демонстрационных операций
type Generator interface {
	GenerateTransaction(riskLevel string) *models.Transaction
}

type Handlers struct {
	evaluator services.Evaluator
	reviews   services.ReviewWorkflow
	policies  services.PolicyAdmin
	users     services.UserAdmin
	generator Generator
	logger    *zap.Logger
}

// NewHandlers создает обработчики REST API
func NewHandlers(evaluator services.Evaluator, reviews services.ReviewWorkflow, policies services.PolicyAdmin, users services.UserAdmin, gen Generator, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		evaluator: evaluator,
		reviews:   reviews,
		policies:  policies,
		users:     users,
		generator: gen,
		logger:    log,
	}
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError переводит типизированную ошибку в HTTP-код; детали внутренних ошибок не раскрываются
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := xerrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// EvaluateTransaction оценивает операцию без постановки в очередь
// @Summary Оценить операцию
// @Description Вычисляет оценку риска и решение политики. Состояние системы не меняется.
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body models.Transaction true "Операция учетной книги"
// @Success 200 {object} models.Evaluation "Оценка и решение"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Failure 500 {object} ErrorResponse "Internal Server Error"
// @Router /transactions/evaluate [post]
func (h *Handlers) EvaluateTransaction(c *gin.Context) {
	var tx models.Transaction
	if !h.bindJSON(c, &tx) {
		return
	}

	eval, err := h.evaluator.EvaluateTransaction(c.Request.Context(), &tx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

// ProcessTransaction оценивает операцию и ставит ее в очередь при необходимости
// @Summary Обработать операцию
// @Description Оценивает операцию; если требуется проверка, создает элемент очереди, иначе публикует авто-одобрение.
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body models.Transaction true "Операция учетной книги"
// @Success 201 {object} models.Evaluation "Операция поставлена в очередь"
// @Success 200 {object} models.Evaluation "Операция одобрена автоматически"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Failure 500 {object} ErrorResponse "Internal Server Error"
// @Router /transactions/process [post]
func (h *Handlers) ProcessTransaction(c *gin.Context) {
	var tx models.Transaction
	if !h.bindJSON(c, &tx) {
		return
	}

	eval, err := h.evaluator.ProcessTransaction(c.Request.Context(), &tx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if eval.ReviewItem != nil {
		status = http.StatusCreated
	}
	c.JSON(status, eval)
}

// BackfillRequest пачка операций для повторной оценки
type BackfillRequest struct {
	Transactions []*models.Transaction `json:"transactions" binding:"required,min=1,max=1000,dive"`
}

// Backfill обрабатывает пачку операций параллельно
// @Summary Пакетная обработка
// @Description Обрабатывает независимые операции пулом воркеров. Ошибка одной операции возвращается в ее результате.
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body BackfillRequest true "Операции"
// @Success 200 {object} map[string]interface{} "Результаты в порядке входа"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /transactions/backfill [post]
func (h *Handlers) Backfill(c *gin.Context) {
	var req BackfillRequest
	if !h.bindJSON(c, &req) {
		return
	}

	results, err := h.evaluator.Backfill(c.Request.Context(), req.Transactions)
	if err != nil {
		h.respondError(c, err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results), "failed": failed})
}

// GetAssessment возвращает сохраненную оценку операции
// @Summary Получить оценку операции
// @Tags transactions
// @Produce json
// @Param id path string true "ID операции"
// @Success 200 {object} models.RiskAssessment "Оценка риска"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Failure 503 {object} ErrorResponse "Service Unavailable"
// @Router /transactions/{id}/assessment [get]
func (h *Handlers) GetAssessment(c *gin.Context) {
	assessment, err := h.evaluator.CachedAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// GenerateRandomTransaction генерирует демонстрационную операцию
// @Summary Сгенерировать операцию
// @Description Генерирует операцию заданного уровня риска; с process=true сразу обрабатывает ее.
// @Tags transactions
// @Produce json
// @Param risk_level query string false "low, medium или high" default(low)
// @Param process query bool false "Обработать сгенерированную операцию"
// @Success 200 {object} map[string]interface{} "Сгенерированная операция"
// @Failure 503 {object} ErrorResponse "Service Unavailable"
// @Router /transactions/generate [get]
func (h *Handlers) GenerateRandomTransaction(c *gin.Context) {
	if h.generator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "generator is not configured"})
		return
	}

	level := c.DefaultQuery("risk_level", generator.RiskLow)
	switch level {
	case generator.RiskLow, generator.RiskMedium, generator.RiskHigh:
	default:
		h.respondError(c, xerrors.Validation("risk_level", "must be low, medium or high"))
		return
	}
	tx := h.generator.GenerateTransaction(level)

	process, _ := strconv.ParseBool(c.Query("process"))
	if !process {
		c.JSON(http.StatusOK, gin.H{"risk_level": level, "transaction": tx})
		return
	}

	eval, err := h.evaluator.ProcessTransaction(c.Request.Context(), tx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"risk_level": level, "transaction": tx, "evaluation": eval})
}

// GetDecisionCounts дневные счетчики решений
// @Summary Счетчики решений за день
// @Tags stats
// @Produce json
// @Param organization_id query string true "Организация"
// @Param date query string false "Дата YYYY-MM-DD, по умолчанию сегодня (UTC)"
// @Success 200 {object} map[string]interface{} "Счетчики по причине решения"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Failure 503 {object} ErrorResponse "Service Unavailable"
// @Router /stats/decisions [get]
func (h *Handlers) GetDecisionCounts(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.respondError(c, xerrors.Validation("date", "must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	org := c.Query("organization_id")
	counts, err := h.evaluator.DecisionCounts(c.Request.Context(), org, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"organization_id": org,
		"date":            day.Format("2006-01-02"),
		"counts":          counts,
	})
}

// queryLimit разбирает limit, некорректное значение дает 0 (лимит по умолчанию)
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, xerrors.Validation("limit", "must be a non-negative integer")
	}
	return limit, nil
}

func logAPIEvent(eventType logger.EventType, data map[string]interface{}) {
	logger.LogEvent(eventType, serviceName, "api", data)
}
