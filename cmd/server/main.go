package main

import (
	"log"

	"github.com/artlog/internal/config"
	"github.com/artlog/internal/db"
	"github.com/artlog/internal/handler"
	"github.com/artlog/internal/router"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	api, err := handler.NewAPI(db.DB, cfg)
	if err != nil {
		log.Fatalf("failed to initialize handlers: %v", err)
	}

	if cfg.OpenAIAPIKey == "" {
		log.Printf("OPENAI_API_KEY is not set, image requests will fail")
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret, "web/template/*.html")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
