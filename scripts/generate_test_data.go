package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/artlog/internal/service"
	"github.com/google/uuid"
)

// 演示数据生成器：生成一份可通过画廊“导入”功能载入的备份文件
func main() {
	records, err := buildDemoRecords(8)
	if err != nil {
		log.Fatal("生成演示数据失败:", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatal("序列化演示数据失败:", err)
	}

	const outFile = "demo-gallery.json"
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		log.Fatal("写入演示数据失败:", err)
	}

	fmt.Printf("已生成 %d 件演示作品: %s\n", len(records), outFile)
	fmt.Println("在画室页面点击「导入」并选择该文件即可载入演示画廊")
}

var demoPrompts = []struct {
	prompt string
	action string
	model  string
	tags   []string
	fill   color.RGBA
}{
	{"a red fox in an autumn forest", service.ActionGenerate, "gpt-image-1", []string{"fox", "forest"}, color.RGBA{R: 200, G: 80, B: 30, A: 255}},
	{"minimalist poster of a lighthouse at dusk", service.ActionGenerate, "dall-e-3", []string{"poster"}, color.RGBA{R: 40, G: 60, B: 120, A: 255}},
	{"watercolor sketch of a mountain village", service.ActionGenerate, "gpt-image-1", []string{"watercolor"}, color.RGBA{R: 120, G: 160, B: 110, A: 255}},
	{"add a wizard hat to the cat", service.ActionEdit, "gpt-image-1", []string{"cat", "edit"}, color.RGBA{R: 90, G: 70, B: 140, A: 255}},
	{"cyberpunk street in heavy rain", service.ActionGenerate, "dall-e-3", []string{"cyberpunk", "night"}, color.RGBA{R: 30, G: 200, B: 180, A: 255}},
	{"", service.ActionVariation, "dall-e-2", nil, color.RGBA{R: 230, G: 180, B: 50, A: 255}},
	{"isometric illustration of a tiny bakery", service.ActionGenerate, "gpt-image-1", []string{"isometric"}, color.RGBA{R: 220, G: 140, B: 160, A: 255}},
	{"studio portrait of a golden retriever", service.ActionGenerate, "gpt-image-1", []string{"dog", "portrait"}, color.RGBA{R: 170, G: 130, B: 60, A: 255}},
}

// buildDemoRecords 生成 n 件带纯色占位图的演示作品，时间从新到旧排列。
func buildDemoRecords(n int) ([]service.ArtworkRecord, error) {
	if n > len(demoPrompts) {
		n = len(demoPrompts)
	}

	now := time.Now().UTC()
	records := make([]service.ArtworkRecord, 0, n)
	for i := 0; i < n; i++ {
		entry := demoPrompts[i]
		b64, err := solidPNG(entry.fill)
		if err != nil {
			return nil, err
		}

		tags := entry.tags
		if tags == nil {
			tags = []string{}
		}
		records = append(records, service.ArtworkRecord{
			ID:        uuid.New().String(),
			CreatedAt: now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			Prompt:    entry.prompt,
			Action:    entry.action,
			Size:      "1024x1024",
			Model:     entry.model,
			B64:       b64,
			Tags:      tags,
		})
	}
	return records, nil
}

func solidPNG(fill color.RGBA) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
