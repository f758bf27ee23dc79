package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"syllabusai/internal/analysis"
	"syllabusai/internal/api/middleware"
	"syllabusai/internal/auth"
	"syllabusai/internal/pdf"
)

// Deps are the collaborators of the HTML routes. Throttle, Revocations and
// Redis may be nil; the matching features are then skipped.
type Deps struct {
	DB             *gorm.DB
	Auth           *auth.AuthService
	Throttle       *auth.LoginThrottle
	Revocations    *auth.Revocations
	Redis          *redis.Client
	Analysis       *analysis.Service
	PDF            pdf.Renderer
	CookieDomain   string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// RegisterRoutes installs the page templates and every HTML route.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates := loadTemplates()
	router.SetHTMLTemplate(templates)

	var (
		throttle    loginThrottle
		revoker     sessionRevoker
		revocations middleware.RevocationChecker
		subscriber  pubsubSubscriber
	)
	if deps.Throttle != nil {
		throttle = deps.Throttle
	}
	if deps.Revocations != nil {
		revoker = deps.Revocations
		revocations = deps.Revocations
	}
	if deps.Redis != nil {
		subscriber = deps.Redis
	}

	authHandler := NewAuthHandler(deps.DB, deps.Auth, throttle, revoker, deps.CookieDomain, logger)
	uploadHandler := NewUploadHandler(deps.Analysis, deps.MaxUploadBytes)
	classHandler := NewClassHandler(deps.DB, deps.PDF, templates)
	adminHandler := NewAdminHandler(deps.DB, deps.Analysis.Sessions(), deps.Analysis.AIAvailable())
	wsHandler := NewWsHandler(subscriber, logger)

	site := router.Group("/")
	site.Use(middleware.LoadSession(deps.Auth, revocations))
	{
		site.GET("/", classHandler.Index)
		site.GET("/register", authHandler.ShowRegister)
		site.POST("/register", authHandler.Register)
		site.GET("/login", authHandler.ShowLogin)
		site.POST("/login", authHandler.Login)
		site.GET("/logout", authHandler.Logout)
		site.POST("/logout", authHandler.Logout)
		site.GET("/ws", wsHandler.HandleConnection)

		member := site.Group("/")
		member.Use(middleware.RequireSession())
		{
			member.GET("/upload", uploadHandler.ShowUpload)
			member.POST("/upload", uploadHandler.Upload)
			member.GET("/upload/:id", uploadHandler.ShowDetails)
			member.POST("/upload/:id/analyze", uploadHandler.Analyze)
			member.POST("/upload/:id/cancel", uploadHandler.Cancel)
			member.GET("/upload/:id/status", uploadHandler.Status)

			member.GET("/classes", classHandler.List)
			member.GET("/classes/export.xlsx", classHandler.ExportXLSX)
			member.GET("/classes/:id", classHandler.Show)
			member.GET("/classes/:id/calendar", classHandler.DownloadCalendar)
			member.GET("/classes/:id/export.pdf", classHandler.ExportPDF)
		}

		admin := site.Group("/admin")
		admin.Use(middleware.RequireSession(), middleware.RequireAdmin())
		{
			admin.GET("", adminHandler.Overview)
			admin.GET("/sessions/:id", adminHandler.SessionHistory)
		}
	}
}
