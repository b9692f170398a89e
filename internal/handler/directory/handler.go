package directory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/service/directory"
)

// Handler serves the assistants, medication inventory and professional
// roster screens.
type Handler struct {
	service *directory.Service
}

func NewHandler(service *directory.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	assistants := r.Group("/assistants")
	{
		assistants.GET("", h.ListAssistants)
		assistants.POST("", h.CreateAssistant)
		assistants.PUT("/:id", h.UpdateAssistant)
		assistants.DELETE("/:id", h.DeleteAssistant)
	}

	medications := r.Group("/medications")
	{
		medications.GET("", h.ListMedications)
		medications.POST("", h.CreateMedication)
		medications.PUT("/:id", h.UpdateMedication)
		medications.DELETE("/:id", h.DeleteMedication)
	}

	profiles := r.Group("/profiles")
	{
		profiles.GET("", h.ListProfiles)
		profiles.GET("/:id", h.GetProfile)
		profiles.PUT("/:id", h.UpdateProfile)
	}
}

func (h *Handler) ListAssistants(c *gin.Context) {
	list, err := h.service.ListAssistants(c.Request.Context(), c.Query("search"))
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) CreateAssistant(c *gin.Context) {
	var req model.AssistantRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.CreateAssistant(c.Request.Context(), &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(a))
}

func (h *Handler) UpdateAssistant(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.AssistantRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.UpdateAssistant(c.Request.Context(), id, &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(a))
}

func (h *Handler) DeleteAssistant(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteAssistant(c.Request.Context(), id); err != nil {
		handler.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMedications(c *gin.Context) {
	list, err := h.service.ListMedications(c.Request.Context(), c.Query("search"))
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) CreateMedication(c *gin.Context) {
	var req model.MedicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	med, err := h.service.CreateMedication(c.Request.Context(), &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(med))
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.MedicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	med, err := h.service.UpdateMedication(c.Request.Context(), id, &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(med))
}

func (h *Handler) DeleteMedication(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteMedication(c.Request.Context(), id); err != nil {
		handler.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListProfiles(c *gin.Context) {
	list, err := h.service.ListProfiles(c.Request.Context(), c.Query("search"))
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetProfile(c.Request.Context(), id)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.ProfileUpdateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdateProfile(c.Request.Context(), handler.CurrentPrincipal(c), id, &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}
