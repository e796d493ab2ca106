package handler

import (
	"github.com/artlog/internal/catalog"
	"github.com/artlog/internal/config"
	"github.com/artlog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	gallery   *service.GalleryService
	images    *service.ImageClient
	exports   *service.ExportService
	catalog   catalog.Catalog
	guidePath string
}

const gallerySessionKey = "gallery_key"

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, cfg config.AppConfig) (*API, error) {
	presets, err := catalog.Load(cfg.ModelPresetPath)
	if err != nil {
		return nil, err
	}

	exports, err := service.NewExportService()
	if err != nil {
		return nil, err
	}

	images := service.NewImageClient(cfg.OpenAIAPIKey)
	images.SetBaseURL(cfg.OpenAIBaseURL)

	return &API{
		db:        gdb,
		gallery:   service.NewGalleryService(gdb),
		images:    images,
		exports:   exports,
		catalog:   presets,
		guidePath: cfg.PromptGuidePath,
	}, nil
}

// ImageClient exposes the upstream client, mainly for tests.
func (a *API) ImageClient() *service.ImageClient {
	return a.images
}

// Gallery exposes the gallery service, mainly for tests.
func (a *API) Gallery() *service.GalleryService {
	return a.gallery
}

// galleryKey 返回当前会话的画廊标识，首次访问时生成并写入会话。
func galleryKey(c *gin.Context) string {
	sess := sessions.Default(c)
	if value, ok := sess.Get(gallerySessionKey).(string); ok && value != "" {
		return value
	}

	key := uuid.New().String()
	sess.Set(gallerySessionKey, key)
	if err := sess.Save(); err != nil {
		c.Error(err)
	}
	return key
}
