package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"risk-review-system/internal/models"
)

// UserRequest запись справочника пользователей
type UserRequest struct {
	Name           string      `json:"name"`
	Role           models.Role `json:"role" binding:"required"`
	OrganizationID string      `json:"organization_id" binding:"required"`
	IsActive       *bool       `json:"is_active"`
}

// GetUser пользователь справочника
// @Summary Пользователь справочника
// @Tags users
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} models.User "Пользователь"
// @Failure 404 {object} ErrorResponse "Not Found"
// @Router /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SaveUser создает или обновляет пользователя; без is_active пользователь активен
// @Summary Сохранить пользователя
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "ID пользователя"
// @Param request body UserRequest true "Роль и организация"
// @Success 200 {object} models.User "Пользователь"
// @Failure 400 {object} ErrorResponse "Bad Request"
// @Router /users/{id} [put]
func (h *Handlers) SaveUser(c *gin.Context) {
	var req UserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user := &models.User{
		ID:             c.Param("id"),
		Name:           req.Name,
		Role:           req.Role,
		OrganizationID: req.OrganizationID,
		IsActive:       req.IsActive == nil || *req.IsActive,
	}
	if user.Name == "" {
		user.Name = user.ID
	}
	saved, err := h.users.SaveUser(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
