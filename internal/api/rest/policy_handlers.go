package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
)

// PolicyUpdateRequest частичное обновление конфигурации области
type PolicyUpdateRequest struct {
	OrganizationID string                    `json:"organization_id" binding:"required"`
	BranchID       string                    `json:"branch_id"`
	Country        string                    `json:"country" binding:"required"`
	ActorID        string                    `json:"actor_id" binding:"required"`
	Update         models.PolicyConfigUpdate `json:"update"`
}

// GetPolicyConfig конфигурация области, создается со значениями по умолчанию
// @Summary Конфигурация политики
// @Tags policy
// @Produce json
// @Param organization_id query string true "Организация"
// @Param branch_id query string false "Филиал"
// @Param country query string true "Страна ISO 3166-1"
// @Success 200 {object} models.PolicyConfig "Конфигурация"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /policy-configs [get]
func (h *Handlers) GetPolicyConfig(c *gin.Context) {
	scope := models.PolicyScope{
		OrganizationID: c.Query("organization_id"),
		BranchID:       c.Query("branch_id"),
		Country:        c.Query("country"),
	}
	cfg, err := h.policies.Get(c.Request.Context(), scope)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdatePolicyConfig применяет частичное обновление
// @Summary Обновить конфигурацию политики
// @Description Меняются только переданные поля, версия увеличивается.
// @Tags policy
// @Accept json
// @Produce json
// @Param request body PolicyUpdateRequest true "Область и изменения"
// @Success 200 {object} models.PolicyConfig "Новая конфигурация"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Failure 409 {object} ErrorResponse "Conflict"
// @Router /policy-configs [patch]
func (h *Handlers) UpdatePolicyConfig(c *gin.Context) {
	var req PolicyUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	scope := models.PolicyScope{OrganizationID: req.OrganizationID, BranchID: req.BranchID, Country: req.Country}

	cfg, err := h.policies.Update(c.Request.Context(), scope, req.Update, req.ActorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	logAPIEvent(logger.EventPolicyUpdated, map[string]interface{}{
		"organization_id": cfg.Scope.OrganizationID,
		"country":         cfg.Scope.Country,
		"version":         cfg.Version,
		"updated_by":      cfg.UpdatedBy,
	})
	c.JSON(http.StatusOK, cfg)
}
