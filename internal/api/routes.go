package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/config"
	"pixelCV/internal/editor"
	"pixelCV/internal/mrz"
)

// Dependencies 汇总路由需要的服务。Redis 为 nil 时不注册通知 WebSocket，
// 也不做批量生成的每日限额；Extractor 为 nil 时护照识别返回 503。
type Dependencies struct {
	Templates TemplateStore
	Jobs      JobStore
	Profiles  GenerationCounter
	Store     ObjectStore
	Queue     TaskEnqueuer
	Renderer  DocumentRenderer
	Redis     *redis.Client
	Verifier  middleware.TokenVerifier
	Scanner   VirusScanner
	Extractor mrz.Extractor
	Settings  editor.Settings
	Sessions  *SessionStore
	API       config.APIConfig
	Logger    *slog.Logger
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, d Dependencies) {
	var counter redisRateCounter
	if d.Redis != nil {
		counter = d.Redis
	}
	var delay time.Duration
	if d.Renderer != nil {
		delay = d.Renderer.Delay()
	}

	templateHandler := NewTemplateHandler(d.Templates, d.Renderer, d.Profiles, d.Store, d.Queue, d.Logger)
	formHandler := NewFormHandler(d.Templates, d.Settings)
	generateHandler := NewGenerateHandler(d.Templates, d.Jobs, d.Store, d.Queue, counter, d.API.BulkDailyLimit, delay)
	passportHandler := NewPassportHandler(d.Extractor, d.Scanner, d.API.MaxUploadBytes)
	editorHandler := NewEditorHandler(EditorHandlerOptions{
		Sessions:       d.Sessions,
		Templates:      d.Templates,
		Queue:          d.Queue,
		Scanner:        d.Scanner,
		Settings:       d.Settings,
		MaxUploadBytes: d.API.MaxUploadBytes,
		Verifier:       d.Verifier,
		AllowedOrigins: d.API.AllowedOrigins,
		Logger:         d.Logger,
	})
	authMiddleware := middleware.AuthMiddleware(d.Verifier)

	v1 := router.Group("/v1")
	{
		if d.Redis != nil {
			wsHandler := NewWsHandler(d.Redis, d.Verifier, d.Logger, d.API.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}
		// WebSocket 使用首条消息鉴权，不经过 Authorization 头
		v1.GET("/editor/sessions/:sid/ws", editorHandler.Stream)

		v1.GET("/catalog", formHandler.GetCatalog)

		authed := v1.Group("")
		authed.Use(authMiddleware)

		templateGroup := authed.Group("/templates")
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.POST("", templateHandler.CreateTemplate)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
			templateGroup.PUT("/:id", templateHandler.UpdateTemplate)
			templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
			templateGroup.POST("/:id/render", templateHandler.RenderTemplate)
		}

		editorGroup := authed.Group("/editor")
		{
			editorGroup.GET("/settings", formHandler.GetSettings)
			editorGroup.POST("/sessions", editorHandler.OpenSession)
			editorGroup.GET("/sessions/:sid", editorHandler.GetSession)
			editorGroup.DELETE("/sessions/:sid", editorHandler.CloseSession)
			editorGroup.POST("/sessions/:sid/pages", editorHandler.ImportPage)
			editorGroup.POST("/sessions/:sid/fields", editorHandler.AddField)
			editorGroup.POST("/sessions/:sid/commands", editorHandler.Command)
			editorGroup.GET("/sessions/:sid/palette", editorHandler.Palette)
			editorGroup.POST("/sessions/:sid/save", editorHandler.Save)
		}

		formGroup := authed.Group("/form-schema")
		{
			formGroup.GET("", formHandler.GetFormSchema)
			formGroup.POST("/completion", formHandler.Completion)
		}

		generateGroup := authed.Group("/generate")
		{
			generateGroup.POST("", generateHandler.StartBulk)
			generateGroup.GET("/:id", generateHandler.GetJob)
			generateGroup.DELETE("/:id", generateHandler.DeleteJob)
		}

		authed.POST("/passport/scan", passportHandler.Scan)
	}
}
