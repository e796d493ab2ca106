package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/artlog/internal/service"
	"github.com/gin-gonic/gin"
)

// 导入文件的大小上限
const maxImportBytes = 256 << 20

type artworkPayload struct {
	Prompt string   `json:"prompt"`
	Action string   `json:"action"`
	Size   string   `json:"size"`
	Model  string   `json:"model"`
	B64    string   `json:"b64"`
	Tags   []string `json:"tags"`
}

// ListArtworks returns the session gallery, optionally filtered by ?q=.
func (a *API) ListArtworks(c *gin.Context) {
	items, err := a.gallery.Search(galleryKey(c), c.Query("q"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取画廊失败")
		return
	}

	records := make([]service.ArtworkRecord, 0, len(items))
	for _, item := range items {
		records = append(records, service.ArtworkRecord{
			ID:        item.ID,
			CreatedAt: item.CreatedAt,
			Prompt:    item.Prompt,
			Action:    item.Action,
			Size:      item.Size,
			Model:     item.Model,
			B64:       item.ImageB64,
			Tags:      item.TagList(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

// CreateArtwork saves a freshly generated image into the session gallery.
func (a *API) CreateArtwork(c *gin.Context) {
	var payload artworkPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	item, err := a.gallery.Add(galleryKey(c), service.ArtworkInput{
		Prompt: payload.Prompt,
		Action: payload.Action,
		Size:   payload.Size,
		Model:  payload.Model,
		B64:    payload.B64,
		Tags:   payload.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageMissing):
			respondError(c, http.StatusBadRequest, "缺少图像数据")
		default:
			respondError(c, http.StatusInternalServerError, "保存作品失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "作品已保存", "id": item.ID})
}

// DeleteArtwork removes a single artwork.
func (a *API) DeleteArtwork(c *gin.Context) {
	if err := a.gallery.Delete(galleryKey(c), c.Param("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrArtworkNotFound):
			respondError(c, http.StatusNotFound, "作品不存在")
		default:
			respondError(c, http.StatusInternalServerError, "删除作品失败")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "作品已删除"})
}

// ClearGallery empties the session gallery.
func (a *API) ClearGallery(c *gin.Context) {
	if err := a.gallery.Clear(galleryKey(c)); err != nil {
		respondError(c, http.StatusInternalServerError, "清空画廊失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "画廊已清空"})
}

// ImportGallery merges an exported JSON array into the session gallery.
func (a *API) ImportGallery(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取导入文件失败")
		return
	}

	imported, err := a.gallery.Import(galleryKey(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportInvalid):
			respondError(c, http.StatusBadRequest, "导入内容不是有效的 JSON 数组")
		default:
			respondError(c, http.StatusInternalServerError, "导入画廊失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// ExportGallery downloads the whole gallery as a JSON file.
func (a *API) ExportGallery(c *gin.Context) {
	records, err := a.gallery.Export(galleryKey(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "导出画廊失败")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="artlog-gallery.json"`)
	c.JSON(http.StatusOK, records)
}

// ExportArtwork re-encodes one artwork and streams it as a download.
// 支持 ?format=png|jpeg|tiff 与 ?overlay=1 叠加提示词水印。
func (a *API) ExportArtwork(c *gin.Context) {
	item, err := a.gallery.Get(galleryKey(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArtworkNotFound):
			respondError(c, http.StatusNotFound, "作品不存在")
		default:
			respondError(c, http.StatusInternalServerError, "获取作品失败")
		}
		return
	}

	overlay := c.Query("overlay") == "1" || c.Query("overlay") == "true"
	result, err := a.exports.Render(item, c.DefaultQuery("format", "png"), overlay)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFormatUnsupported):
			respondError(c, http.StatusBadRequest, "不支持的导出格式")
		default:
			respondError(c, http.StatusInternalServerError, "导出作品失败")
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
