package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
)

// AssignRequest ручное назначение проверяющего
type AssignRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	ActorID    string `json:"actor_id" binding:"required"`
}

// DecisionRequest решение проверяющего
type DecisionRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	Comments   string `json:"comments"`
}

// SecondApprovalRequest второе подтверждение
type SecondApprovalRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
}

// CommentRequest комментарий к элементу
type CommentRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// ListReviews открытые элементы организации
// @Summary Очередь проверки
// @Description Элементы в состояниях PENDING, IN_REVIEW, ESCALATED по приоритету, затем по времени создания.
// @Tags reviews
// @Produce json
// @Param organization_id query string true "Организация"
// @Param assigned_to query string false "Проверяющий"
// @Param priority query string false "low, medium, high, critical"
// @Param branch_id query string false "Филиал"
// @Param limit query int false "Лимит (максимум 500)" default(50)
// @Success 200 {object} map[string]interface{} "Элементы очереди"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /reviews [get]
func (h *Handlers) ListReviews(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	filters := models.ReviewFilters{
		AssignedTo: c.Query("assigned_to"),
		Priority:   models.Priority(c.Query("priority")),
		BranchID:   c.Query("branch_id"),
		Limit:      limit,
	}

	items, err := h.reviews.ListPending(c.Request.Context(), c.Query("organization_id"), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GetReview элемент очереди с журналом аудита
// @Summary Получить элемент очереди
// @Tags reviews
// @Produce json
// @Param id path string true "ID элемента"
// @Success 200 {object} models.ReviewQueueItem "Элемент"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Router /reviews/{id} [get]
func (h *Handlers) GetReview(c *gin.Context) {
	item, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AssignReview назначает проверяющего
// @Summary Назначить проверяющего
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "ID элемента"
// @Param request body AssignRequest true "Назначение"
// @Success 200 {object} models.ReviewQueueItem "Элемент в состоянии IN_REVIEW"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /reviews/{id}/assign [post]
func (h *Handlers) AssignReview(c *gin.Context) {
	var req AssignRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.reviews.Assign(c.Request.Context(), c.Param("id"), req.ReviewerID, req.ActorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	logAPIEvent(logger.EventReviewAssigned, map[string]interface{}{"review_id": item.ID, "assigned_to": item.AssignedTo})
	c.JSON(http.StatusOK, item)
}

// AutoAssignReview назначает наименее загруженного проверяющего
// @Summary Автоназначение
// @Tags reviews
// @Produce json
// @Param id path string true "ID элемента"
// @Success 200 {object} models.ReviewQueueItem "Элемент в состоянии IN_REVIEW"
// @Failure 404 {object} ErrorResponse "Нет доступных проверяющих"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /reviews/{id}/auto-assign [post]
func (h *Handlers) AutoAssignReview(c *gin.Context) {
	item, err := h.reviews.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	logAPIEvent(logger.EventReviewAssigned, map[string]interface{}{"review_id": item.ID, "assigned_to": item.AssignedTo})
	c.JSON(http.StatusOK, item)
}

// ApproveReview одобряет элемент
// @Summary Одобрить
// @Description Может перевести элемент в ESCALATED, если роль требует второго подтверждения.
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "ID элемента"
// @Param request body DecisionRequest true "Решение"
// @Success 200 {object} models.ReviewQueueItem "Элемент"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /reviews/{id}/approve [post]
func (h *Handlers) ApproveReview(c *gin.Context) {
	h.decide(c, true)
}

// RejectReview отклоняет элемент
// @Summary Отклонить
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "ID элемента"
// @Param request body DecisionRequest true "Решение"
// @Success 200 {object} models.ReviewQueueItem "Элемент в состоянии REJECTED"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /reviews/{id}/reject [post]
func (h *Handlers) RejectReview(c *gin.Context) {
	h.decide(c, false)
}

func (h *Handlers) decide(c *gin.Context, approved bool) {
	var req DecisionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	decision := models.ReviewDecision{Approved: approved, Reason: req.Reason, Comments: req.Comments}

	var (
		item *models.ReviewQueueItem
		err  error
	)
	if approved {
		item, err = h.reviews.Approve(c.Request.Context(), c.Param("id"), req.ReviewerID, decision)
	} else {
		item, err = h.reviews.Reject(c.Request.Context(), c.Param("id"), req.ReviewerID, decision)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	eventType := logger.EventReviewDecided
	if item.Status == models.ReviewStatusEscalated {
		eventType = logger.EventReviewEscalated
	}
	logAPIEvent(eventType, map[string]interface{}{"review_id": item.ID, "status": string(item.Status)})
	c.JSON(http.StatusOK, item)
}

// SecondApproval второе подтверждение эскалированного элемента
// @Summary Второе подтверждение
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "ID элемента"
// @Param request body SecondApprovalRequest true "Подтверждающий"
// @Success 200 {object} models.ReviewQueueItem "Элемент в состоянии APPROVED"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /reviews/{id}/second-approval [post]
func (h *Handlers) SecondApproval(c *gin.Context) {
	var req SecondApprovalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.reviews.EscalateSecondApproval(c.Request.Context(), c.Param("id"), req.ApproverID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	logAPIEvent(logger.EventReviewDecided, map[string]interface{}{"review_id": item.ID, "status": string(item.Status)})
	c.JSON(http.StatusOK, item)
}

// AddComment добавляет комментарий в журнал аудита
// @Summary Комментарий
// @Description Доступно и для элементов в финальном состоянии.
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "ID элемента"
// @Param request body CommentRequest true "Комментарий"
// @Success 201 {object} models.ReviewQueueItem "Элемент"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Router /reviews/{id}/comments [post]
func (h *Handlers) AddComment(c *gin.Context) {
	var req CommentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.reviews.AddComment(c.Request.Context(), c.Param("id"), req.ActorID, req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ListSLABreaches просроченные открытые элементы
// @Summary Нарушения SLA
// @Tags reviews
// @Produce json
// @Param organization_id query string true "Организация"
// @Success 200 {object} map[string]interface{} "Просроченные элементы"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /reviews/sla-breaches [get]
func (h *Handlers) ListSLABreaches(c *gin.Context) {
	items, err := h.reviews.SLABreaches(c.Request.Context(), c.Query("organization_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GetReviewStats статистика очереди из кэша
// @Summary Статистика очереди
// @Tags stats
// @Produce json
// @Param organization_id query string true "Организация"
// @Success 200 {object} models.ReviewStats "Статистика"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /stats/reviews [get]
func (h *Handlers) GetReviewStats(c *gin.Context) {
	org := c.Query("organization_id")
	if org == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "organization_id is required"})
		return
	}
	c.JSON(http.StatusOK, h.reviews.StatsSnapshot(org))
}

// RebuildReviewStats пересчитывает статистику по хранилищу
// @Summary Пересчитать статистику
// @Tags stats
// @Produce json
// @Param organization_id query string true "Организация"
// @Success 200 {object} models.ReviewStats "Статистика"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /stats/reviews/rebuild [post]
func (h *Handlers) RebuildReviewStats(c *gin.Context) {
	stats, err := h.reviews.RebuildStats(c.Request.Context(), c.Query("organization_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
