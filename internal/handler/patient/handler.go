package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/service/patient"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)

		patients.GET("/:id/medications", h.ListMedications)
		patients.PUT("/:id/medications/:medicationId", h.UpdateMedication)
		patients.DELETE("/:id/medications/:medicationId", h.DeleteMedication)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.PatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Create(c.Request.Context(), handler.CurrentPrincipal(c), &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.List(c.Request.Context(), handler.CurrentPrincipal(c), c.Query("search"))
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

// GetPatient returns the detail view: the patient, consultations and
// standing medications.
func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.service.Detail(c.Request.Context(), handler.CurrentPrincipal(c), id)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(detail))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.PatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), handler.CurrentPrincipal(c), id, &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) ListMedications(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	meds, err := h.service.ListMedications(c.Request.Context(), handler.CurrentPrincipal(c), id)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(meds))
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	medID, ok := handler.ParseID(c, "medicationId")
	if !ok {
		return
	}

	var req model.MedicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	med, err := h.service.UpdateMedication(c.Request.Context(), handler.CurrentPrincipal(c), id, medID, &req)
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
	medID, ok := handler.ParseID(c, "medicationId")
	if !ok {
		return
	}

	if err := h.service.DeleteMedication(c.Request.Context(), handler.CurrentPrincipal(c), id, medID); err != nil {
		handler.Abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
