package handlers

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/middleware"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// NewRouter wires every route with its role requirements
func NewRouter(h *Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	{
		// Public
		api.GET("/health", h.Health.Index)
		api.POST("/auth/login", h.Auth.Login)

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))

		protected.GET("/users/me", h.User.Me)
		protected.POST("/users", middleware.RequireAdmin(), h.User.Create)
		protected.GET("/jobs/status", middleware.RequireAdmin(), h.Job.Status)
		protected.POST("/jobs/:name/run", middleware.RequireAdmin(), h.Job.Run)
		protected.GET("/audits", middleware.RequireRole(models.RoleContractManager, models.RoleFinance), h.Audit.Index)

		contracts := protected.Group("/contracts")
		registerContractRoutes(contracts, h)
	}

	return router
}

func registerContractRoutes(contracts *gin.RouterGroup, h *Handlers) {
	manager := middleware.RequireRole(models.RoleContractManager)
	finance := middleware.RequireRole(models.RoleFinance)

	// Reads are open to every role
	contracts.GET("", h.Contract.Index)
	contracts.GET("/:id", h.Contract.Show)
	contracts.GET("/:id/amendments", h.Amendment.Index)
	contracts.GET("/:id/milestones", h.Milestone.Index)
	contracts.GET("/:id/billing-schedules", h.Billing.Index)
	contracts.GET("/alerts", h.Workflow.ListAlerts)

	reports := contracts.Group("/reports")
	{
		reports.GET("/performance", h.Report.Performance)
		reports.GET("/financial", h.Report.Financial)
		reports.GET("/client-analysis", h.Report.ClientAnalysis)
	}

	// Contract and milestone management
	contracts.POST("", manager, h.Contract.Create)
	contracts.PUT("/:id", manager, h.Contract.Update)
	contracts.DELETE("/:id", manager, h.Contract.Delete)
	contracts.POST("/:id/amendments", manager, h.Amendment.Create)
	contracts.POST("/:id/milestones", manager, h.Milestone.Create)
	contracts.PUT("/:id/milestones/:milestoneId", manager, h.Milestone.Update)
	contracts.PUT("/milestones/bulk-update", manager, h.Milestone.BulkUpdate)

	// Amendment approval and billing belong to finance
	contracts.PUT("/:id/amendments/:amendmentId", finance, h.Amendment.Update)
	contracts.POST("/:id/billing-schedules", finance, h.Billing.Create)
	contracts.PUT("/:id/billing-schedules/:scheduleId", finance, h.Billing.Update)

	workflow := contracts.Group("/workflow")
	{
		workflow.POST("/activate", manager, h.Workflow.Activate)
		workflow.POST("/renew", manager, h.Workflow.Renew)
		workflow.POST("/escalate", manager, h.Workflow.Escalate)
		workflow.POST("/trigger-billing", finance, h.Workflow.TriggerBilling)
		workflow.POST("/recurring-billing", finance, h.Workflow.RecurringBilling)
	}

	alerts := contracts.Group("/alerts", manager)
	{
		alerts.POST("/generate", h.Workflow.GenerateAlerts)
		alerts.POST("/milestone-risks", h.Workflow.GenerateMilestoneRisks)
		alerts.PUT("/:alertId", h.Workflow.UpdateAlert)
	}

	contracts.POST("/sync/crm", manager, h.Integration.SyncCRM)
	contracts.POST("/integrations/project-management", manager, h.Integration.ProjectManagement)
	contracts.POST("/integrations/revenue-recognition", finance, h.Integration.RevenueRecognition)
	contracts.GET("/integrations/history", middleware.RequireRole(models.RoleContractManager, models.RoleFinance), h.Integration.History)
	contracts.POST("/export/legal-review", manager, h.Integration.LegalReview)
}
