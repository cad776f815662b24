package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/complyard/complyard/internal/aichat"
	"github.com/complyard/complyard/internal/api/handlers"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/config"
	"github.com/complyard/complyard/internal/mailer"
	"github.com/complyard/complyard/internal/rbac"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// routeResources lists every resource family the router registers. Checked
// against the policy table at startup so a new route group cannot ship
// without a permission entry.
var routeResources = []string{
	rbac.ResourceRisks,
	rbac.ResourceIncidents,
	rbac.ResourceGovernanceItems,
	rbac.ResourceComplianceFwks,
	rbac.ResourceComplianceReqs,
	rbac.ResourceComplianceCtrls,
	rbac.ResourceThreats,
	rbac.ResourceConfigurations,
	rbac.ResourceUsers,
	rbac.ResourceAuditLogs,
	rbac.ResourceTrainingCourses,
	rbac.ResourceTrainingQuizzes,
	rbac.ResourceTrainingQuestions,
	rbac.ResourceTrainingAttempts,
	rbac.ResourceChat,
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *gorm.DB, rec *audit.Recorder) (*gin.Engine, error) {
	if missing := rbac.Validate(routeResources); len(missing) > 0 {
		return nil, fmt.Errorf("resource families without policy rules: %v", missing)
	}

	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware(cfg.CORS.AllowedOrigins))

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	authenticator := auth.NewBasicAuthenticator(db, cfg.Auth.JWTSecret, tokenTTL)

	cookieMaxAge := int(tokenTTL / time.Second)
	cookieSecure := cfg.Server.Mode == "production"
	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	if cfg.Server.TLSCert != "" {
		baseURL = fmt.Sprintf("https://localhost:%d", cfg.Server.Port)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, authenticator, mailer.LogMailer{}, rec, cookieMaxAge, cookieSecure, baseURL)
	riskHandler := handlers.NewRiskHandler(db, rec)
	incidentHandler := handlers.NewIncidentHandler(db, rec)
	governanceHandler := handlers.NewGovernanceHandler(db, rec)
	complianceHandler := handlers.NewComplianceHandler(db, rec)
	threatHandler := handlers.NewThreatHandler(db, rec)
	configurationHandler := handlers.NewConfigurationHandler(db, rec)
	userHandler := handlers.NewUserHandler(db, rec)
	auditLogHandler := handlers.NewAuditLogHandler(db, rec)
	trainingHandler := handlers.NewTrainingHandler(db, rec)
	chatHandler := handlers.NewChatHandler(aichat.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, aichat.NewFailover(cfg.AI.Models)))

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck)
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.GET("/auth/verify", authHandler.VerifyEmail)
	}

	if cfg.Auth.Type == "oidc" {
		oidcAuth, err := auth.NewOIDCAuthenticator(context.Background(), cfg.Auth.OIDC, authenticator, db)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC: %w", err)
		}
		ssoHandler := handlers.NewSSOHandler(oidcAuth, rec, cookieMaxAge, cookieSecure)
		public.GET("/auth/oidc/login", ssoHandler.Login)
		public.GET("/auth/oidc/callback", ssoHandler.Callback)
	}

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(authenticator.Middleware())
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		registerEntity(protected, "/risks", rbac.ResourceRisks, entityRoutes{
			List: riskHandler.List, Search: riskHandler.Search, Get: riskHandler.Get,
			Create: riskHandler.Create, Update: riskHandler.Update, Delete: riskHandler.Delete,
		})
		registerEntity(protected, "/incidents", rbac.ResourceIncidents, entityRoutes{
			List: incidentHandler.List, Search: incidentHandler.Search, Get: incidentHandler.Get,
			Create: incidentHandler.Create, Update: incidentHandler.Update, Delete: incidentHandler.Delete,
		})
		registerEntity(protected, "/governance-items", rbac.ResourceGovernanceItems, entityRoutes{
			List: governanceHandler.List, Search: governanceHandler.Search, Get: governanceHandler.Get,
			Create: governanceHandler.Create, Update: governanceHandler.Update, Delete: governanceHandler.Delete,
		})
		registerEntity(protected, "/compliance/frameworks", rbac.ResourceComplianceFwks, entityRoutes{
			List: complianceHandler.ListFrameworks, Search: complianceHandler.SearchFrameworks, Get: complianceHandler.GetFramework,
			Create: complianceHandler.CreateFramework, Update: complianceHandler.UpdateFramework, Delete: complianceHandler.DeleteFramework,
		})
		registerEntity(protected, "/compliance/requirements", rbac.ResourceComplianceReqs, entityRoutes{
			List: complianceHandler.ListRequirements, Search: complianceHandler.SearchRequirements, Get: complianceHandler.GetRequirement,
			Create: complianceHandler.CreateRequirement, Update: complianceHandler.UpdateRequirement, Delete: complianceHandler.DeleteRequirement,
		})
		registerEntity(protected, "/compliance/controls", rbac.ResourceComplianceCtrls, entityRoutes{
			List: complianceHandler.ListControls, Search: complianceHandler.SearchControls, Get: complianceHandler.GetControl,
			Create: complianceHandler.CreateControl, Update: complianceHandler.UpdateControl, Delete: complianceHandler.DeleteControl,
		})
		registerEntity(protected, "/threats", rbac.ResourceThreats, entityRoutes{
			List: threatHandler.List, Search: threatHandler.Search, Get: threatHandler.Get,
			Create: threatHandler.Create, Update: threatHandler.Update, Delete: threatHandler.Delete,
		})
		registerEntity(protected, "/configurations", rbac.ResourceConfigurations, entityRoutes{
			List: configurationHandler.List, Search: configurationHandler.Search, Get: configurationHandler.Get,
			Create: configurationHandler.Create, Update: configurationHandler.Update, Delete: configurationHandler.Delete,
		})
		registerEntity(protected, "/users", rbac.ResourceUsers, entityRoutes{
			List: userHandler.List, Search: userHandler.Search, Get: userHandler.Get,
			Create: userHandler.Create, Update: userHandler.Update, Delete: userHandler.Delete,
		})

		// Audit trail: read-only plus the purge endpoint.
		auditRead := middleware.Authorize(rbac.ResourceAuditLogs, rbac.ActionRead)
		protected.GET("/audit-logs", auditRead, auditLogHandler.List)
		protected.GET("/audit-logs/:id", auditRead, auditLogHandler.Get)
		protected.DELETE("/audit-logs", middleware.Authorize(rbac.ResourceAuditLogs, rbac.ActionPurge), auditLogHandler.Purge)

		// Awareness training.
		registerEntity(protected, "/awareness/courses", rbac.ResourceTrainingCourses, entityRoutes{
			List: trainingHandler.ListCourses, Search: trainingHandler.SearchCourses, Get: trainingHandler.GetCourse,
			Create: trainingHandler.CreateCourse, Update: trainingHandler.UpdateCourse, Delete: trainingHandler.DeleteCourse,
		})
		registerEntity(protected, "/awareness/quizzes", rbac.ResourceTrainingQuizzes, entityRoutes{
			List: trainingHandler.ListQuizzes, Search: trainingHandler.SearchQuizzes, Get: trainingHandler.GetQuiz,
			Create: trainingHandler.CreateQuiz, Update: trainingHandler.UpdateQuiz, Delete: trainingHandler.DeleteQuiz,
		})

		questionWrite := middleware.Authorize(rbac.ResourceTrainingQuestions, rbac.ActionWrite)
		protected.POST("/awareness/questions", questionWrite, trainingHandler.CreateQuestion)
		protected.DELETE("/awareness/questions/:id", questionWrite, trainingHandler.DeleteQuestion)

		protected.POST("/awareness/attempts", middleware.Authorize(rbac.ResourceTrainingAttempts, rbac.ActionWrite), trainingHandler.SubmitAttempt)
		protected.GET("/awareness/attempts", middleware.Authorize(rbac.ResourceTrainingAttempts, rbac.ActionRead), trainingHandler.ListAttempts)

		// AI assistant.
		protected.POST("/chat", middleware.Authorize(rbac.ResourceChat, rbac.ActionUse), chatHandler.Complete)
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router, nil
}

// entityRoutes bundles the six standard handlers of a CRUD entity.
type entityRoutes struct {
	List, Search, Get, Create, Update, Delete gin.HandlerFunc
}

// registerEntity mounts the uniform route set for one entity family. Reads
// and writes are gated by the family's policy entries.
func registerEntity(g *gin.RouterGroup, path, resource string, r entityRoutes) {
	read := middleware.Authorize(resource, rbac.ActionRead)
	write := middleware.Authorize(resource, rbac.ActionWrite)

	g.GET(path, read, r.List)
	g.GET(path+"/search", read, r.Search)
	g.GET(path+"/:id", read, r.Get)
	g.POST(path, write, r.Create)
	g.PUT(path+"/:id", write, r.Update)
	g.DELETE(path+"/:id", write, r.Delete)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"request_id", middleware.GetRequestID(c),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers for the configured origins
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
