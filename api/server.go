package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/internal/identities"
	"github.com/koryun2/ICAI-backend-app/internal/interviews"
	"github.com/koryun2/ICAI-backend-app/internal/ratelimit"
	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// Server represents the API server
type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	identities  identities.IdentityService
	interviews  interviews.InterviewService
	authLimiter *ratelimit.Limiter
}

// NewServer creates a new API server with injected services. authLimiter may
// be nil, which disables throttling on the auth endpoints.
func NewServer(
	logger *zap.Logger,
	identitiesSvc identities.IdentityService,
	interviewsSvc interviews.InterviewService,
	authLimiter *ratelimit.Limiter,
) *Server {
	server := &Server{
		logger:      logger,
		identities:  identitiesSvc,
		interviews:  interviewsSvc,
		authLimiter: authLimiter,
	}

	registerValidations()

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("icai-api"))
	router.Use(MetricsMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Interview-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine, used by main for the http.Server
// handler and by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := s.router.Group("/api")
	{
		// Auth
		api.POST("/register/", s.rateLimited("register"), s.register)
		api.POST("/token/", s.rateLimited("token"), s.obtainToken)
		api.POST("/token/refresh/", s.refreshToken)

		// Profile
		api.GET("/me/", s.authRequired(), s.me)
		api.PUT("/me/", s.authRequired(), s.updateMe)
		api.PATCH("/me/", s.authRequired(), s.updateMe)

		// Interviews: accessible both to authenticated owners and to guests
		// holding a session's public token, so auth here is optional.
		api.GET("/interviews/", s.authOptional(), s.listSessions)
		api.POST("/interviews/", s.authOptional(), s.rateLimited("interview_create"), s.createSession)
		api.GET("/interviews/:id/", s.authOptional(), s.sessionDetail)
		api.POST("/interviews/:id/generate/", s.authOptional(), s.generateQuestions)
		api.POST("/interviews/:id/evaluate/", s.authOptional(), s.evaluateSession)
		api.PATCH("/interviews/:id/questions/:order/", s.authOptional(), s.answerQuestion)
		api.DELETE("/interviews/:id/questions/:order/", s.authOptional(), s.deleteQuestion)

		// Admin
		admin := api.Group("/admin", s.authRequired(), s.staffRequired())
		{
			admin.GET("/users/", s.adminListUsers)
			admin.GET("/interviews/", s.adminListSessions)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// registerValidations installs the custom binding validators used by the
// request DTOs.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("interview_level", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "", models.LevelJuniorI, models.LevelJuniorII, models.LevelMid, models.LevelUpperMid, models.LevelSenior:
				return true
			}
			return false
		})
	}
}
