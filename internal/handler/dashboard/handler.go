package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/service/dashboard"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

type Handler struct {
	service *dashboard.Service
}

func NewHandler(service *dashboard.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Overview)
}

// Overview accepts an optional practitioner_id, honoured for administrators.
func (h *Handler) Overview(c *gin.Context) {
	var selected *uuid.UUID
	if raw := c.Query("practitioner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.Abort(c, apperrors.BadRequest("invalid practitioner_id", err))
			return
		}
		selected = &id
	}

	out, err := h.service.Overview(c.Request.Context(), handler.CurrentPrincipal(c), selected)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(out))
}
