package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/artlog/internal/catalog"
)

// ErrAPIKeyMissing 在未配置图像接口密钥时返回。
var ErrAPIKeyMissing = errors.New("image api key is not configured")

// ErrInputImageMissing 在编辑或变体请求缺少原始图片时返回。
var ErrInputImageMissing = errors.New("input image is required")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type imageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageAPIResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerationRequest 描述一次图像生成所需的参数。
type GenerationRequest struct {
	Prompt string
	Size   string
	Model  string
}

// UploadedImage 承载用户上传的原始图片或蒙版。
type UploadedImage struct {
	FileName string
	Data     []byte
}

// ImageClient 封装外部图像生成接口的 generate/edit/variation 调用。
type ImageClient struct {
	http    httpDoer
	apiKey  string
	baseURL string
}

// NewImageClient 构造默认的 ImageClient。
func NewImageClient(apiKey string) *ImageClient {
	return &ImageClient{
		http:    &http.Client{Timeout: 180 * time.Second},
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: "https://api.openai.com/v1",
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (c *ImageClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 180 * time.Second}
		return
	}
	c.http = client
}

// SetBaseURL 覆盖默认的接口地址。
func (c *ImageClient) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return
	}
	c.baseURL = base
}

// SetAPIKey 更新接口密钥。
func (c *ImageClient) SetAPIKey(key string) {
	c.apiKey = strings.TrimSpace(key)
}

// Generate 将提示词转发至生成接口并返回 base64 图像数据。
func (c *ImageClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	payload := imageGenerationRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Size:   req.Size,
		N:      1,
	}
	// dall-e 系列需要显式请求 base64 结果，gpt-image 系列默认即返回
	if catalog.IsDallE(req.Model) {
		payload.ResponseFormat = "b64_json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}

	return c.post(ctx, "/images/generations", "application/json", bytes.NewReader(body))
}

// Edit 上传原始图片与可选蒙版，按提示词进行编辑。
func (c *ImageClient) Edit(ctx context.Context, req GenerationRequest, image, mask *UploadedImage) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyMissing
	}
	if image == nil || len(image.Data) == 0 {
		return "", ErrInputImageMissing
	}

	fields := map[string]string{
		"model":  req.Model,
		"prompt": req.Prompt,
		"size":   req.Size,
		"n":      "1",
	}
	if catalog.IsDallE(req.Model) {
		fields["response_format"] = "b64_json"
	}

	body, contentType, err := buildImageForm(fields, image, mask)
	if err != nil {
		return "", err
	}

	return c.post(ctx, "/images/edits", contentType, body)
}

// Variation 基于上传的原始图片生成变体。变体接口不接受提示词。
func (c *ImageClient) Variation(ctx context.Context, req GenerationRequest, image *UploadedImage) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyMissing
	}
	if image == nil || len(image.Data) == 0 {
		return "", ErrInputImageMissing
	}

	fields := map[string]string{
		"model":           req.Model,
		"size":            req.Size,
		"n":               "1",
		"response_format": "b64_json",
	}

	body, contentType, err := buildImageForm(fields, image, nil)
	if err != nil {
		return "", err
	}

	return c.post(ctx, "/images/variations", contentType, body)
}

func buildImageForm(fields map[string]string, image, mask *UploadedImage) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("构造表单字段 %s 失败: %w", name, err)
		}
	}

	if err := writeFormFile(writer, "image", image); err != nil {
		return nil, "", err
	}
	if mask != nil && len(mask.Data) > 0 {
		if err := writeFormFile(writer, "mask", mask); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("构造表单失败: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeFormFile(writer *multipart.Writer, field string, file *UploadedImage) error {
	name := strings.TrimSpace(file.FileName)
	if name == "" {
		name = field + ".png"
	}
	part, err := writer.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("构造文件字段 %s 失败: %w", field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("写入文件字段 %s 失败: %w", field, err)
	}
	return nil
}

// post 发送请求并从响应中提取第一张 base64 图像。
func (c *ImageClient) post(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	endpoint := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("创建图像接口请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "artlog/1.0")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求图像接口失败: %w", err)
	}
	defer resp.Body.Close()

	// base64 图像可能达到数十 MB
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", fmt.Errorf("读取图像接口响应失败: %w", err)
	}

	var parsed imageAPIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("解析图像接口响应失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(parsed.Error.Message)
		if errMsg == "" {
			errMsg = resp.Status
		}
		return "", fmt.Errorf("图像接口返回错误：%s", errMsg)
	}

	if len(parsed.Data) == 0 || strings.TrimSpace(parsed.Data[0].B64JSON) == "" {
		return "", errors.New("图像接口未返回图像数据")
	}

	return parsed.Data[0].B64JSON, nil
}
