package handler

import (
	"net/http"
	"time"

	"github.com/artlog/internal/catalog"
	"github.com/gin-gonic/gin"
)

// ShowStudio 渲染创作工作台页面。
func (a *API) ShowStudio(c *gin.Context) {
	// 提前签发画廊标识，保证首次请求就带上会话 Cookie
	galleryKey(c)

	c.HTML(http.StatusOK, "studio.html", gin.H{
		"title":        "ArtLog 画室",
		"sizes":        a.catalog.Sizes,
		"models":       a.catalog.Models,
		"defaultSize":  catalog.DefaultSize,
		"defaultModel": catalog.DefaultModel,
		"year":         time.Now().Year(),
	})
}
