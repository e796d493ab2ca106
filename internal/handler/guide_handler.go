package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

const defaultGuideMarkdown = `# 提示词指南

写好提示词是获得理想画面的关键。

## 基本结构

一条完整的提示词通常包含：**主体**、**环境**、**风格**、**光线**。

例如：

> A red fox standing on mossy rocks, misty forest at dawn, watercolor style, soft golden light

## 实用建议

- 把最重要的描述放在最前面
- 用具体的名词代替抽象的形容词
- 想要特定构图时，直接写出视角（close-up / wide shot / top-down）
- 编辑模式下，提示词描述的是**期望的最终画面**，而不是修改动作
- 变体模式不使用提示词，只基于原图生成

## 分辨率选择

| 场景 | 建议尺寸 |
| --- | --- |
| 头像、图标 | 256x256 / 512x512 |
| 通用插画 | 1024x1024 |
| 横幅、壁纸 | 1536x1024 |
| 竖版海报 | 1024x1536 |
`

// ShowGuide 渲染提示词指南页面，内容可通过 PROMPT_GUIDE_PATH 覆盖。
func (a *API) ShowGuide(c *gin.Context) {
	source := defaultGuideMarkdown
	if a.guidePath != "" {
		if data, err := os.ReadFile(a.guidePath); err == nil {
			source = string(data)
		} else {
			c.Error(err)
		}
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(source), &buf); err != nil {
		c.HTML(http.StatusInternalServerError, "guide.html", gin.H{
			"title": "提示词指南",
			"error": "渲染指南内容失败",
			"year":  time.Now().Year(),
		})
		return
	}

	c.HTML(http.StatusOK, "guide.html", gin.H{
		"title":   "提示词指南",
		"content": template.HTML(sanitizer.SanitizeBytes(buf.Bytes())),
		"year":    time.Now().Year(),
	})
}
