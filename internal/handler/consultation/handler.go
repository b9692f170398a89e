package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/service/consultation"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients/:id/consultations")
	{
		patients.GET("", h.ListConsultations)
		patients.POST("", h.SaveConsultation)
		patients.GET("/draft", h.NewDraft)
		patients.POST("/draft/medicines", h.EditMedicines)
	}

	consultations := r.Group("/consultations")
	{
		consultations.GET("/:id/draft", h.ExistingDraft)
		consultations.PUT("/:id", h.UpdateConsultation)
	}
}

func (h *Handler) ListConsultations(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), handler.CurrentPrincipal(c), patientID)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) NewDraft(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	draft, err := h.service.NewDraft(c.Request.Context(), handler.CurrentPrincipal(c), patientID)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(draft))
}

func (h *Handler) ExistingDraft(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	draft, err := h.service.ExistingDraft(c.Request.Context(), handler.CurrentPrincipal(c), id)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(draft))
}

// EditMedicines applies one medicine operation to the submitted draft and
// returns the edited draft.
func (h *Handler) EditMedicines(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var op consultation.MedicineOp
	if !handler.BindJSON(c, &op) {
		return
	}
	op.Draft.PatientID = patientID

	draft, err := h.service.ApplyMedicineOp(c.Request.Context(), handler.CurrentPrincipal(c), &op)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(draft))
}

func (h *Handler) SaveConsultation(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.ConsultationSaveRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	status := http.StatusCreated
	if req.ID != "" {
		status = http.StatusOK
	}
	h.save(c, patientID, &req, status)
}

func (h *Handler) UpdateConsultation(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.ConsultationSaveRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.ExistingDraft(c.Request.Context(), handler.CurrentPrincipal(c), id)
	if err != nil {
		handler.Abort(c, err)
		return
	}
	req.ID = id.String()
	h.save(c, existing.PatientID, &req, http.StatusOK)
}

func (h *Handler) save(c *gin.Context, patientID uuid.UUID, req *model.ConsultationSaveRequest, status int) {
	draft, err := consultation.DraftFromRequest(patientID, req)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	result, err := h.service.Save(c.Request.Context(), handler.CurrentPrincipal(c), draft)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(status, handler.NewSuccessResponse(result))
}
