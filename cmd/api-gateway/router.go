package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/vigilance-tracker-api/internal/handler"
	"github.com/noah-isme/vigilance-tracker-api/internal/middleware"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/vigilance-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vigilance-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

func (a *app) router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.db)
	r.GET("/health", metricsHandler.Health)
	if a.cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(a.cfg.APIPrefix, "/")
	api := r.Group(prefix)

	authHandler := handler.NewAuthHandler(a.auth)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	superAdmin := string(models.RoleSuperAdmin)

	petitionHandler := handler.NewPetitionHandler(a.petitions, a.workflow, a.sla)
	petitions := secured.Group("/petitions")
	petitions.GET("", petitionHandler.List)
	petitions.POST("",
		middleware.RBAC(string(models.RoleDataEntry), superAdmin),
		middleware.Audit(a.userRepo, a.logger, models.AuditActionPetitionCreate, "petition"),
		petitionHandler.Create)
	petitions.GET("/:id", petitionHandler.Get)
	petitions.GET("/:id/ledger", petitionHandler.Ledger)
	petitions.GET("/:id/sla", petitionHandler.SLA)
	petitions.GET("/:id/report", petitionHandler.Report)
	petitions.POST("/:id/actions/:operation", petitionHandler.Action)

	fileHandler := handler.NewFileHandler(a.files)
	secured.POST("/files", fileHandler.Upload)
	secured.GET("/files/:token", fileHandler.Download)

	if a.cfg.Dashboard.Enabled {
		dashboardHandler := handler.NewDashboardHandler(a.dashboard)
		secured.GET("/dashboard", dashboardHandler.Summary)
		secured.GET("/dashboard/drilldown", dashboardHandler.Drilldown)
		secured.GET("/notifications/pending", dashboardHandler.Pending)
	}

	fieldRuleHandler := handler.NewFieldRuleHandler(a.fieldRules)
	fieldRules := secured.Group("/field-rules")
	fieldRules.GET("", fieldRuleHandler.List)
	fieldRules.PUT("/bulk", middleware.RBAC(superAdmin), fieldRuleHandler.BulkUpdate)
	fieldRules.PUT("/:key", middleware.RBAC(superAdmin), fieldRuleHandler.Update)

	userHandler := handler.NewUserHandler(a.users)
	users := secured.Group("/users")
	users.GET("", middleware.RBAC(superAdmin, middleware.GroupCVO), userHandler.List)
	users.GET("/inspectors", middleware.RBAC(superAdmin, middleware.GroupCVO), userHandler.Inspectors)
	users.PUT("/:id/supervisor", middleware.RBAC(superAdmin), userHandler.SetSupervisor)

	if a.reports != nil {
		reportHandler := handler.NewReportHandler(a.reports)
		secured.POST("/reports", reportHandler.GenerateReport)
		secured.GET("/reports/:id/status", reportHandler.ReportStatus)
		// signed token carries its own authorization
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}
