package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

// SessionResolver turns a bearer token into the caller it was issued to.
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	sessions SessionResolver
}

func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate resolves the bearer token and stores the principal on the
// context for handlers.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := handler.BearerToken(c)
		if token == "" {
			handler.Abort(c, apperrors.Unauthorized(errors.New("missing bearer token")))
			return
		}

		principal, err := m.sessions.CurrentSession(c.Request.Context(), token)
		if err != nil {
			handler.Abort(c, err)
			return
		}

		handler.SetPrincipal(c, principal)
		c.Next()
	}
}

func principalID(c *gin.Context) string {
	if p := handler.CurrentPrincipal(c); p != nil {
		return p.ID.String()
	}
	return ""
}
