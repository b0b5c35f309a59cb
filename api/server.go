package api

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Aidin1998/catalogue/api/handlers"
	"github.com/Aidin1998/catalogue/common/apiutil"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/config"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/internal/database"
	"github.com/Aidin1998/catalogue/internal/presentation"
	"github.com/Aidin1998/catalogue/internal/session"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/Aidin1998/catalogue/pkg/validation"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed templates/*.html
var templateFS embed.FS

// Services are the domain services the server exposes
type Services struct {
	Auth          *auth.Service
	Data          *data.Service
	Presentations *presentation.Service
	Selections    session.SelectionStore
}

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	logger  *zap.Logger
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	handler *handlers.Handler
	login   gin.HandlerFunc
}

// NewServer creates the HTTP server. redisClient may be nil.
func NewServer(logger *zap.Logger, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, services Services) (*Server, error) {
	cookies := handlers.CookieConfig{
		Secure:      cfg.Session.Secure,
		TokenMaxAge: cfg.Auth.ExpirationHours * 3600,
	}
	server := &Server{
		logger:  logger,
		cfg:     cfg,
		db:      db,
		redis:   redisClient,
		handler: handlers.New(logger, services.Auth, services.Data, services.Presentations, services.Selections, cookies),
	}

	// Login attempts per client IP
	rate, err := limiter.NewRateFromFormatted(cfg.Auth.LoginRate)
	if err != nil {
		return nil, fmt.Errorf("invalid login rate %q: %w", cfg.Auth.LoginRate, err)
	}
	server.login = ginlimiter.NewMiddleware(limiter.New(memory.NewStore(), rate),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			apiutil.WriteError(c, errors.TooMany.Explain("too many login attempts, try again later"))
		}),
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			_ = c.Error(err)
		}))

	templates, err := template.New("").Funcs(templateFuncs(validation.NewSanitizer())).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// Create router
	router := gin.New()
	router.SetHTMLTemplate(templates)

	// Add middleware
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(apiutil.TraceIDMiddleware())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", apiutil.TraceIDHeader},
		ExposeHeaders:    []string{"Content-Length", apiutil.TraceIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(apiutil.MetricsMiddleware())
	router.Use(apiutil.RFC7807ErrorMiddleware())
	router.Use(session.Middleware(cfg.Session))
	router.Use(services.Auth.Middleware())
	router.NoRoute(apiutil.NoRoute())

	server.router = router
	server.registerRoutes()
	return server, nil
}

func templateFuncs(sanitizer *validation.Sanitizer) template.FuncMap {
	return template.FuncMap{
		// fieldHTML renders html values through the sanitizer and escapes everything else
		"fieldHTML": func(valueType, value string) template.HTML {
			if valueType == models.ValueTypeHTML {
				return template.HTML(sanitizer.Value(valueType, value))
			}
			return template.HTML(template.HTMLEscapeString(value))
		},
		"typeChoices": func() []string {
			return []string{models.ValueTypeText, models.ValueTypeDate, models.ValueTypeNumber, models.ValueTypeHTML}
		},
	}
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Router returns the internal Gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// HTTPServer wraps the router in an http.Server using the configured address and timeouts
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// registerRoutes registers all routes
func (s *Server) registerRoutes() {
	h := s.handler

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/data/collections")
	})
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Authentication
	authGroup := s.router.Group("/auth")
	{
		authGroup.POST("/login", s.login, h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", auth.RequireLogin(), h.Me)
	}

	dataGroup := s.router.Group("/data")
	{
		dataGroup.GET("/collections", h.Collections)
		dataGroup.GET("/collection/:id/:name", h.Collection)
		dataGroup.GET("/record/:id/:name", h.Record)

		// Record editing, in the default context or for an owner and collection
		edit := dataGroup.Group("/record/:id/:name/edit", auth.RequireLogin())
		{
			edit.GET("", h.EditRecord)
			edit.POST("", h.SaveRecord)
			edit.GET("/:owner/:collection", h.EditRecord)
			edit.POST("/:owner/:collection", h.SaveRecord)
		}

		dataGroup.GET("/selected", h.Selected)
		dataGroup.POST("/selected", h.AddSelectedToPresentation)
		dataGroup.POST("/selected/add", h.SelectRecords)
		dataGroup.POST("/selected/remove", h.DeselectRecords)
		dataGroup.POST("/selected/clear", h.ClearSelection)
	}

	s.router.GET("/presentation/:id/:name/edit", auth.RequireLogin(), h.EditPresentation)
}

// healthCheck reports whether the database, and redis when configured, answer
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := database.Ping(ctx, s.db); err != nil {
		checks["database"] = "unavailable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		s.logger.Warn("Health check failed", zap.Any("checks", checks))
		problem := errors.ToProblemDetails(errors.Unavailable.Explain("dependencies unavailable"), c.Request.URL.Path)
		problem.WithExtra("checks", checks)
		apiutil.RFC7807ErrorResponse(c, problem)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
		"checks": checks,
	})
}
