package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/handler"
	"github.com/psicare/manager-api/internal/model"
	apperrors "github.com/psicare/manager-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "app error keeps its status",
			err:        apperrors.NotFound("patient", nil),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "forbidden",
			err:        apperrors.Forbidden("only administrators can change roles"),
			wantStatus: http.StatusForbidden,
			wantMsg:    "only administrators can change roles",
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantMsg:    "request timeout",
		},
		{
			name:       "unknown errors are hidden",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/", func(c *gin.Context) { handler.Abort(c, tt.err) })

			w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode(t, w)
			assert.Equal(t, "error", env.Status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, env.Message)
			}
		})
	}
}

func TestErrorHandler_DoesNotOverwriteResponse(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.JSON(http.StatusAccepted, handler.NewSuccessResponse("queued"))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "success", decode(t, w).Status)
}

type bindTarget struct {
	Name string `json:"full_name" binding:"required"`
	Date string `json:"date" binding:"required,civildate"`
	Time string `json:"time" binding:"omitempty,clock"`
}

func validationEngine() *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(), Validation(DefaultValidationConfig()))
	r.POST("/", func(c *gin.Context) {
		var body bindTarget
		if !handler.BindJSON(c, &body) {
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(body))
	})
	return r
}

func TestValidation_FieldErrors(t *testing.T) {
	r := validationEngine()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2026-13-40","time":"25:00"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "validation failed", env.Message)

	var fields []ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	byField := make(map[string]string, len(fields))
	for _, f := range fields {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "Field is required", byField["full_name"])
	assert.Equal(t, "Date must be formatted as YYYY-MM-DD", byField["date"])
	assert.Equal(t, "Time must be formatted as HH:MM", byField["time"])
}

func TestValidation_AcceptsValidBody(t *testing.T) {
	r := validationEngine()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"full_name":"Ana","date":"2026-10-16","time":"09:15"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidation_MalformedJSONIsBadRequest(t *testing.T) {
	r := validationEngine()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"full_name":`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w).Status)
}

type stubResolver struct {
	principal *model.Principal
	err       error
	gotToken  string
}

func (s *stubResolver) CurrentSession(_ context.Context, token string) (*model.Principal, error) {
	s.gotToken = token
	return s.principal, s.err
}

func TestAuthenticate(t *testing.T) {
	p := &model.Principal{ID: uuid.New(), Role: model.RolePractitioner}

	tests := []struct {
		name       string
		header     string
		resolver   *stubResolver
		wantStatus int
	}{
		{name: "missing token", resolver: &stubResolver{principal: p}, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", resolver: &stubResolver{principal: p}, wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer expired", resolver: &stubResolver{err: apperrors.Unauthorized(nil)}, wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "bearer good-token", resolver: &stubResolver{principal: p}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler(), NewAuthMiddleware(tt.resolver).Authenticate())
			r.GET("/", func(c *gin.Context) {
				c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.CurrentPrincipal(c)))
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "good-token", tt.resolver.gotToken)
				assert.Contains(t, w.Body.String(), p.ID.String())
			}
		})
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4000"
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, request("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("192.0.2.1"))
	assert.Equal(t, http.StatusOK, request("192.0.2.2"))
}

func TestCache(t *testing.T) {
	r := gin.New()
	r.GET("/private", Cache(NoStoreCacheConfig()), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/public", Cache(PublicCacheConfig(120)), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/public", Cache(PublicCacheConfig(120)), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "Authorization", w.Header().Get("Vary"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, "public, max-age=120", w.Header().Get("Cache-Control"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/public", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCORS(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowOrigins = []string{"https://app.psicare.example"}

	r := gin.New()
	r.Use(CORS(config))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := httptest.NewRequest(http.MethodOptions, "/", nil)
	preflight.Header.Set("Origin", "https://app.psicare.example")
	w := serve(r, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.psicare.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Document-Id")
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	foreign := httptest.NewRequest(http.MethodGet, "/", nil)
	foreign.Header.Set("Origin", "https://evil.example")
	w = serve(r, foreign)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestVersion(t *testing.T) {
	r := gin.New()
	r.Use(Version(DefaultVersionConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		header string
		want   int
	}{
		{header: "", want: http.StatusOK},
		{header: "1.0", want: http.StatusOK},
		{header: "v1", want: http.StatusBadRequest},
		{header: "3.1", want: http.StatusNotAcceptable},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Version", tt.header)
		}
		w := serve(r, req)
		assert.Equal(t, tt.want, w.Code, "version %q", tt.header)
		if tt.want == http.StatusOK {
			assert.Equal(t, "1.0", w.Header().Get(HeaderAPIVersion))
		}
	}
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8, MaxHeaderSize: 1 << 10, ErrorMessage: "too large"}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("01234")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Message)
}

func TestRequestID(t *testing.T) {
	inbound := uuid.NewString()

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{name: "generated when absent"},
		{name: "uuid reused", header: inbound, reuse: true},
		{name: "non-uuid replaced", header: "abc\nforged=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderXRequestID, tt.header)
			}
			w := serve(r, req)

			rid := w.Header().Get(HeaderXRequestID)
			_, err := uuid.Parse(rid)
			require.NoError(t, err)
			assert.Equal(t, rid, w.Body.String())
			if tt.reuse {
				assert.Equal(t, inbound, rid)
			} else {
				assert.NotEqual(t, tt.header, rid)
			}
		})
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: time.Minute}))
	r.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		if !ok || time.Until(deadline) > time.Minute {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders_DocumentPages(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DocumentSecurityConfig("https://quickchart.io")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "https://quickchart.io")
}
