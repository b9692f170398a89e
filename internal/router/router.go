package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/psicare/manager-api/internal/handler"
	authhandler "github.com/psicare/manager-api/internal/handler/auth"
	consultationhandler "github.com/psicare/manager-api/internal/handler/consultation"
	dashboardhandler "github.com/psicare/manager-api/internal/handler/dashboard"
	directoryhandler "github.com/psicare/manager-api/internal/handler/directory"
	documenthandler "github.com/psicare/manager-api/internal/handler/document"
	"github.com/psicare/manager-api/internal/handler/health"
	patienthandler "github.com/psicare/manager-api/internal/handler/patient"
	"github.com/psicare/manager-api/internal/handler/prometheus"
	"github.com/psicare/manager-api/internal/middleware"
)

const (
	apiPrefix     = "/api/v1"
	bootstrapPath = apiPrefix + "/session/bootstrap"
)

// Handler is implemented by every area handler.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Health       *health.Handler
	Auth         *authhandler.Handler
	Patient      *patienthandler.Handler
	Consultation *consultationhandler.Handler
	Document     *documenthandler.Handler
	Directory    *directoryhandler.Handler
	Dashboard    *dashboardhandler.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	RateLimit          rate.Limit
	RateBurst          int
	CORSConfig         middleware.CORSConfig
	RequestTimeout     time.Duration
	MaxBodySize        int64
	MetricsPath        string
	PublicCacheSeconds int
	// QRHost is allowed as an image source on the document pages.
	QRHost string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodySize > 0 {
		sizeLimit.MaxBodySize = config.MaxBodySize
	}
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})

	// ErrorHandler wraps Validation so field errors are answered first.
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		handlers.Metrics.Middleware(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(sizeLimit),
		rateLimiter.RateLimit(),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("route not found"))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handler.NewErrorResponse("method not allowed"))
	})

	return r
}

func (r *Router) Setup() {
	h := r.handlers
	timeout := middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.RequestTimeout})

	r.engine.GET(r.config.MetricsPath, h.Metrics.Handler())

	// Validation pages reached from printed QR codes.
	pages := r.engine.Group("",
		middleware.SecurityHeaders(middleware.DocumentSecurityConfig(r.config.QRHost)),
		middleware.Compress(middleware.DefaultCompressConfig()),
		timeout,
	)
	h.Document.RegisterPageRoutes(pages, bootstrapPath)

	api := r.engine.Group(apiPrefix,
		middleware.Version(middleware.DefaultVersionConfig()),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)
	h.Health.RegisterRoutes(api)

	public := api.Group("", timeout)
	h.Auth.RegisterRoutes(public)
	h.Document.RegisterPublicRoutes(public.Group("",
		middleware.Cache(middleware.PublicCacheConfig(r.config.PublicCacheSeconds))))

	// Session routes skip the request timeout: the event stream is long-lived.
	sessions := api.Group("", r.auth.Authenticate(), middleware.Cache(middleware.NoStoreCacheConfig()))
	h.Auth.RegisterSessionRoutes(sessions)

	protected := api.Group("",
		timeout,
		r.auth.Authenticate(),
		middleware.Cache(middleware.NoStoreCacheConfig()),
	)
	for _, area := range []Handler{h.Patient, h.Consultation, h.Document, h.Directory, h.Dashboard} {
		area.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
