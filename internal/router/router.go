package router

import (
	"path/filepath"

	"github.com/artlog/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置 Gin 引擎和路由。templateGlob 为空或无匹配时跳过模板加载，
// 方便只测试 API 路由的场景。
func SetupRouter(api *handler.API, sessionSecret, templateGlob string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件，会话中保存访客的画廊标识
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions("artlog_session", store))

	if templateGlob != "" {
		if matches, err := filepath.Glob(templateGlob); err == nil && len(matches) > 0 {
			r.LoadHTMLGlob(templateGlob)
		}
	}

	// 静态文件服务
	r.Static("/static", "./web/static")

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 页面路由
	r.GET("/", api.ShowStudio)
	r.GET("/guide", api.ShowGuide)

	// API路由
	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/images", api.CreateImage)

		apiGroup.GET("/gallery", api.ListArtworks)
		apiGroup.POST("/gallery", api.CreateArtwork)
		apiGroup.DELETE("/gallery", api.ClearGallery)
		apiGroup.DELETE("/gallery/:id", api.DeleteArtwork)
		apiGroup.POST("/gallery/import", api.ImportGallery)
		apiGroup.GET("/gallery/export", api.ExportGallery)
		apiGroup.GET("/gallery/:id/export", api.ExportArtwork)
	}

	return r
}
