package auth

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/service/session"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

type Handler struct {
	svc *session.Service
}

func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the routes reachable without a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/signin", h.SignIn)
		auth.POST("/signout", h.SignOut)
	}
	r.GET("/session/bootstrap", h.Bootstrap)
}

// RegisterSessionRoutes mounts the routes that need an authenticated caller.
func (h *Handler) RegisterSessionRoutes(r *gin.RouterGroup) {
	r.GET("/session", h.CurrentSession)
	r.GET("/session/events", h.Events)
}

func (h *Handler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.SignUp(c.Request.Context(), &req)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(tokens))
}

func (h *Handler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}

func (h *Handler) SignOut(c *gin.Context) {
	token := handler.BearerToken(c)
	if token == "" {
		handler.Abort(c, apperrors.Unauthorized(nil))
		return
	}
	if err := h.svc.SignOut(c.Request.Context(), token); err != nil {
		handler.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("signed out"))
}

// Bootstrap only looks at doc_id and the bearer token.
func (h *Handler) Bootstrap(c *gin.Context) {
	result := h.svc.Bootstrap(c.Request.Context(), c.Query("doc_id"), handler.BearerToken(c))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(session.NewAppState(handler.CurrentPrincipal(c))))
}

// Events streams sign-in and sign-out notifications of the caller as
// server-sent events until the client disconnects.
func (h *Handler) Events(c *gin.Context) {
	principal := handler.CurrentPrincipal(c)
	events, err := h.svc.Subscribe(c.Request.Context(), principal.ID)
	if err != nil {
		handler.Abort(c, apperrors.Internal(err))
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return false
		}
		c.SSEvent(event.Type, string(payload))
		return true
	})
}
