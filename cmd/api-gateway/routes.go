package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/research-library-api/api/swagger"
	"github.com/noah-isme/research-library-api/internal/handler"
	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/pkg/config"
	"github.com/noah-isme/research-library-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/research-library-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/research-library-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, app *application) *gin.Engine {
	cookie := handler.CookieSettings{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		MaxAge: app.sessions.IdleTimeout(),
	}

	authHandler := handler.NewAuthHandler(app.auth, cookie)
	userHandler := handler.NewUserHandler(app.users, cookie)
	strandHandler := handler.NewStrandHandler(app.strands)
	paperHandler := handler.NewPaperHandler(app.papers)
	activityHandler := handler.NewActivityLogHandler(app.activityLog)
	statsHandler := handler.NewStatsHandler(app.stats)
	metricsHandler := handler.NewMetricsHandler(app.metrics, app.checks)

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	session := middleware.RequireSession(app.sessions, cookie)
	optional := middleware.OptionalSession(app.sessions, cookie)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	selfOrAdmin := middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/report-expiry", authHandler.ReportExpiry)
	auth.POST("/logout", session, authHandler.Logout)
	auth.GET("/me", session, authHandler.Me)

	users := api.Group("/users", session)
	users.GET("", userHandler.List)
	users.POST("", adminOnly, userHandler.Create)
	users.GET("/sessions", userHandler.ActiveSessions)
	users.PUT("/:id", selfOrAdmin, userHandler.Update)
	users.DELETE("/:id", selfOrAdmin, userHandler.Delete)
	users.DELETE("/:id/sessions", selfOrAdmin, userHandler.Kick)

	api.GET("/strands", optional, strandHandler.List)
	strands := api.Group("/strands", session)
	strands.POST("", strandHandler.Create)
	strands.PUT("/:id", strandHandler.Update)
	strands.DELETE("/:id", strandHandler.Delete)

	api.GET("/papers", optional, paperHandler.List)
	api.GET("/papers/:id", optional, paperHandler.Get)
	api.GET("/papers/view/:id", paperHandler.View)
	api.GET("/papers/download/:id", paperHandler.Download)
	papers := api.Group("/papers", session)
	papers.POST("", paperHandler.Create)
	papers.PUT("/:id", paperHandler.Update)
	papers.DELETE("/:id", adminOnly, paperHandler.Delete)

	api.GET("/stats", optional, statsHandler.Public)
	api.GET("/dashboard/stats", session, statsHandler.Dashboard)

	logs := api.Group("/activity-logs", session, adminOnly)
	logs.GET("", activityHandler.List)
	logs.DELETE("", activityHandler.Delete)
	logs.GET("/export", activityHandler.Export)

	return r
}
