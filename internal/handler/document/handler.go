package document

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/service/document"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

const (
	HeaderDocumentID        = "X-Document-Id"
	HeaderDocumentPersisted = "X-Document-Persisted"
	HeaderValidationURL     = "X-Validation-Url"

	contentTypeHTML = "text/html; charset=utf-8"
)

type Handler struct {
	service *document.Service
}

func NewHandler(service *document.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts document generation for signed-in callers.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/patients/:id/documents", h.Generate)
	r.GET("/documents/exams/common", h.CommonExams)
}

// RegisterPublicRoutes mounts the JSON validation lookup.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/public/documents/:id", h.ValidateJSON)
}

// RegisterPageRoutes mounts the validation page at the site root, where the
// QR codes point, and at /validate.
func (h *Handler) RegisterPageRoutes(r *gin.RouterGroup, bootstrapPath string) {
	r.GET("/", func(c *gin.Context) {
		if c.Query("doc_id") == "" {
			c.Redirect(http.StatusFound, bootstrapPath)
			return
		}
		h.ValidatePage(c)
	})
	r.GET("/validate", h.ValidatePage)
}

// Generate answers with the printable page. The document id and whether the
// validation record was stored travel in response headers.
func (h *Handler) Generate(c *gin.Context) {
	patientID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.DocumentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	out, err := h.service.Generate(c.Request.Context(), handler.CurrentPrincipal(c), patientID, &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.Header(HeaderDocumentID, out.ID)
	c.Header(HeaderDocumentPersisted, strconv.FormatBool(out.Persisted))
	c.Header(HeaderValidationURL, out.ValidationURL)
	c.Data(http.StatusCreated, contentTypeHTML, []byte(out.HTML))
}

func (h *Handler) CommonExams(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.service.CommonExams()))
}

// ValidatePage serves the public validation page for ?doc_id. Unknown or
// malformed ids render the invalid page with a 404.
func (h *Handler) ValidatePage(c *gin.Context) {
	v, page, err := h.service.ValidationPage(c.Request.Context(), c.Query("doc_id"))
	if err != nil {
		handler.Abort(c, apperrors.Internal(err))
		return
	}

	status := http.StatusOK
	if !v.Valid {
		status = http.StatusNotFound
	}
	c.Data(status, contentTypeHTML, []byte(page))
}

func (h *Handler) ValidateJSON(c *gin.Context) {
	v := h.service.Validate(c.Request.Context(), c.Param("id"))
	if !v.Valid {
		c.JSON(http.StatusNotFound, handler.NewErrorResponseWithData("document not found or invalid", v))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(v))
}
