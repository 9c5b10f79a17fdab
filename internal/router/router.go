package router

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/handler"
	"github.com/smallplates/internal/logger"
	"github.com/smallplates/internal/middleware"
)

// Options configures the engine around the handler set.
type Options struct {
	SessionSecret  string
	AllowedOrigins []string
	// UploadDir is served at UploadURL when the local storage backend is used.
	UploadDir   string
	UploadURL   string
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	log := logger.OrDefault(opts.Logger, "http")

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	secret := opts.SessionSecret
	if secret == "" {
		secret = "smallplates-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/admin", HttpOnly: true, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions("smallplates_admin", store))

	if opts.UploadDir != "" {
		uploadURL := "/" + strings.Trim(opts.UploadURL, "/")
		if uploadURL == "/" {
			uploadURL = "/uploads"
		}
		r.Static(uploadURL, opts.UploadDir)
	}

	r.GET("/healthz", api.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		// 公开的收集链接接口
		public := v1.Group("/collection")
		public.Use(opts.RateLimiter.Limit())
		{
			public.POST("/link-recipe", api.LinkRecipe)
			public.GET("/:token", api.GetCollection)
			public.GET("/:token/guests", api.SearchCollectionGuests)
			public.POST("/:token/recipes", api.SubmitRecipe)
			public.PATCH("/:token/recipes/:id/notification", api.UpdateRecipeNotification)
			public.PATCH("/:token/guests/:id/notification", api.UpdateGuestNotification)
		}

		// 主办方接口
		host := v1.Group("")
		host.Use(middleware.HostIdentity())
		{
			host.GET("/guests", api.ListGuests)
			host.POST("/guests/:id/archive", api.ArchiveGuest)
			host.POST("/guests/:id/restore", api.RestoreGuest)

			host.GET("/collection-settings", api.GetCollectionSettings)
			host.POST("/collection-settings/token", api.RegenerateCollectionToken)
			host.PUT("/collection-settings/enabled", api.SetCollectionEnabled)

			host.GET("/groups/:id/recipes", api.ListGroupRecipes)
			host.POST("/groups/:id/recipes/reorder", api.ReorderGroupRecipes)
		}
	}

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(handler.AuthRequired())
		{
			ops := auth.Group("/operations")
			{
				ops.GET("/recipes", api.ListOperationsRecipes)
				ops.GET("/recipes/:id", api.GetOperationsRecipe)
				ops.PATCH("/recipes/:id", api.UpdateProductionStatus)
				ops.POST("/recipes/:id", api.MarkRecipeReviewed)
				ops.PUT("/recipes/:id/content", api.EditRecipeContent)
				ops.POST("/recipes/:id/upload-image", api.UploadGeneratedImage)
				ops.POST("/recipes/:id/generate-prompt", api.GeneratePrompt)
				ops.GET("/stats", api.OperationsStats)
			}

			auth.GET("/prompt-evaluations", api.GetPromptEvaluation)
			auth.POST("/prompt-evaluations", api.SavePromptEvaluation)

			auth.GET("/api/settings", api.GetSystemSettings)
			auth.PUT("/api/settings", api.UpdateSystemSettings)
		}
	}

	return r
}
