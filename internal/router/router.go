package router

import (
	"net/http"

	_ "github.com/3Eeeecho/go-fileshare/docs"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/middlewares"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/ratelimit"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	Auth  *handlers.AuthHandler
	File  *handlers.FileHandler
	Share *handlers.ShareHandler
	Admin *handlers.AdminHandler
}

// Options 路由层的可选项，限流器为 nil 时不限流
type Options struct {
	Mode               string
	FrontendOrigin     string
	MaxMultipartMemory int64
	LoginLimiter       ratelimit.Limiter
	DownloadLimiter    ratelimit.Limiter
}

func InitRouter(h Handlers, sessions admin.SessionService, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	router := gin.New()
	if opts.MaxMultipartMemory > 0 {
		router.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// 全局中间件
	router.Use(middlewares.Recovery())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.Metrics())
	router.Use(middlewares.CORS(opts.FrontendOrigin))

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	requireAuth := middlewares.AuthMiddleware(sessions)
	api := router.Group("/api")
	{
		// 认证相关路由
		authGroup := api.Group("/auth")
		{
			loginLimit := middlewares.RateLimit(opts.LoginLimiter, middlewares.ByClientIP)
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", loginLimit, h.Auth.Login)
			authGroup.POST("/demo", loginLimit, h.Auth.Demo)
			authGroup.POST("/logout", requireAuth, h.Auth.Logout)
			authGroup.GET("/verify", requireAuth, h.Auth.Verify)
		}

		// 文件相关路由
		uploadGroup := api.Group("/upload", requireAuth)
		{
			uploadGroup.POST("/files", h.File.Upload)
			uploadGroup.GET("/files", h.File.List)
			uploadGroup.GET("/download/:fileId", h.File.Download)
			uploadGroup.DELETE("/files/:fileId", h.File.Delete)
			uploadGroup.POST("/archive", h.File.Archive)
		}

		// 分享相关路由，查看和下载无需登录
		shareGroup := api.Group("/share")
		{
			shareGroup.GET("/:token", h.Share.Resolve)
			shareGroup.POST("/:token/download",
				middlewares.RateLimit(opts.DownloadLimiter, middlewares.ByClientIPAndParam("token")),
				h.Share.Download)

			shareGroup.POST("/create", requireAuth, h.Share.Create)
			shareGroup.GET("/my", requireAuth, h.Share.ListMine)
			shareGroup.PATCH("/:shareId", requireAuth, h.Share.Update)
			shareGroup.DELETE("/:shareId", requireAuth, h.Share.Delete)
		}

		// 管理后台
		adminGroup := api.Group("/admin", requireAuth, middlewares.RequireAdmin())
		{
			adminGroup.GET("/stats", h.Admin.Stats)
			adminGroup.GET("/users", h.Admin.ListUsers)
			adminGroup.POST("/users", h.Admin.CreateUser)
			adminGroup.GET("/users/:id", h.Admin.GetUser)
			adminGroup.PUT("/users/:id", h.Admin.UpdateUser)
			adminGroup.DELETE("/users/:id", h.Admin.DeleteUser)
			adminGroup.GET("/users/:id/storage", h.Admin.UserStorage)
			adminGroup.GET("/files", h.Admin.ListFiles)
			adminGroup.DELETE("/files/:fileId", h.Admin.DeleteFile)
			adminGroup.POST("/cleanup", h.Admin.Cleanup)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, xerr.NotFoundCode, "Route not found")
	})

	return router
}
