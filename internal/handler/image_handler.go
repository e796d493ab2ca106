package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/artlog/internal/catalog"
	"github.com/artlog/internal/service"
	"github.com/gin-gonic/gin"
)

type imageRequestPayload struct {
	Action string `json:"action"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Model  string `json:"model"`
}

// CreateImage 接收生成/编辑/变体请求，转发到外部图像接口并返回 base64 结果。
// 请求体可以是 JSON，也可以是携带 image/mask 文件的 multipart 表单。
func (a *API) CreateImage(c *gin.Context) {
	var payload imageRequestPayload
	var image, mask *service.UploadedImage

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		payload.Action = c.PostForm("action")
		payload.Prompt = c.PostForm("prompt")
		payload.Size = c.PostForm("size")
		payload.Model = c.PostForm("model")

		var err error
		if image, err = readFormImage(c, "image"); err != nil {
			respondError(c, http.StatusBadRequest, "读取上传图片失败")
			return
		}
		if mask, err = readFormImage(c, "mask"); err != nil {
			respondError(c, http.StatusBadRequest, "读取蒙版文件失败")
			return
		}
	} else {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	req := service.GenerationRequest{
		Prompt: strings.TrimSpace(payload.Prompt),
		Size:   a.catalog.NormalizeSize(payload.Size),
		Model:  a.catalog.NormalizeModel(payload.Model),
	}

	ctx := c.Request.Context()
	var b64 string
	var err error

	switch strings.ToLower(strings.TrimSpace(payload.Action)) {
	case service.ActionEdit:
		if image == nil {
			respondError(c, http.StatusBadRequest, "编辑操作需要上传原始图片")
			return
		}
		b64, err = a.images.Edit(ctx, req, image, mask)
	case service.ActionVariation:
		if image == nil {
			respondError(c, http.StatusBadRequest, "变体操作需要上传原始图片")
			return
		}
		// 变体接口只支持 dall-e 系列模型
		req.Model = catalog.CoerceVariationModel(req.Model)
		b64, err = a.images.Variation(ctx, req, image)
	default:
		b64, err = a.images.Generate(ctx, req)
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrAPIKeyMissing):
			respondError(c, http.StatusInternalServerError, "未配置图像接口密钥")
		case errors.Is(err, service.ErrInputImageMissing):
			respondError(c, http.StatusBadRequest, "缺少原始图片")
		default:
			respondError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"b64": b64})
}

// readFormImage 读取可选的上传文件，文件不存在时返回 nil。
func readFormImage(c *gin.Context, field string) (*service.UploadedImage, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &service.UploadedImage{FileName: header.Filename, Data: data}, nil
}
