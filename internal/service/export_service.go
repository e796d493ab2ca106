package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/artlog/internal/db"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrFormatUnsupported = errors.New("export format is not supported")

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatTIFF = "tiff"

	// 浏览器端导出使用 0.92 质量，对应 1-100 范围的 92
	jpegExportQuality = 92
	maxPromptLines    = 2
)

// ExportResult holds the encoded bytes plus download metadata.
type ExportResult struct {
	Data        []byte
	ContentType string
	FileName    string
}

// ExportService 将画廊作品重新编码为下载文件，可选叠加提示词水印。
type ExportService struct {
	font *sfnt.Font
}

// NewExportService parses the embedded caption font.
func NewExportService() (*ExportService, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse caption font: %w", err)
	}
	return &ExportService{font: parsed}, nil
}

// Render decodes the stored image, optionally composites the caption band
// and re-encodes it in the requested format.
func (s *ExportService) Render(item *db.Artwork, format string, overlay bool) (*ExportResult, error) {
	format = normalizeFormat(format)
	if format == "" {
		return nil, ErrFormatUnsupported
	}

	raw := strings.TrimSpace(item.ImageB64)
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode artwork payload: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode artwork image: %w", err)
	}

	if overlay {
		img, err = s.composite(img, item)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	var contentType, ext string
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
		contentType, ext = "image/png", "png"
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegExportQuality})
		contentType, ext = "image/jpeg", "jpg"
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		contentType, ext = "image/tiff", "tiff"
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", format, err)
	}

	return &ExportResult{
		Data:        buf.Bytes(),
		ContentType: contentType,
		FileName:    fmt.Sprintf("art-%s.%s", item.ID, ext),
	}, nil
}

func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPNG:
		return FormatPNG
	case FormatJPEG, "jpg":
		return FormatJPEG
	case FormatTIFF, "tif":
		return FormatTIFF
	default:
		return ""
	}
}

// composite 在图像底部绘制半透明信息条：最多两行提示词加一行元数据。
// 字号随图像宽度等比缩放。
func (s *ExportService) composite(src image.Image, item *db.Artwork) (image.Image, error) {
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	width := bounds.Dx()
	promptSize := float64(width) / 32
	if promptSize < 12 {
		promptSize = 12
	}
	metaSize := float64(width) / 42
	if metaSize < 10 {
		metaSize = 10
	}

	promptFace, err := opentype.NewFace(s.font, &opentype.FaceOptions{Size: promptSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("build caption face: %w", err)
	}
	defer promptFace.Close()

	metaFace, err := opentype.NewFace(s.font, &opentype.FaceOptions{Size: metaSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("build caption face: %w", err)
	}
	defer metaFace.Close()

	padding := int(promptSize / 2)
	if padding < 6 {
		padding = 6
	}
	maxTextWidth := width - 2*padding

	lines := wrapText(promptFace, strings.TrimSpace(item.Prompt), maxTextWidth, maxPromptLines)
	promptMetrics := promptFace.Metrics()
	metaMetrics := metaFace.Metrics()
	promptLineHeight := promptMetrics.Height.Ceil()
	metaLineHeight := metaMetrics.Height.Ceil()

	bandHeight := 2*padding + len(lines)*promptLineHeight + metaLineHeight
	band := image.Rect(bounds.Min.X, bounds.Max.Y-bandHeight, bounds.Max.X, bounds.Max.Y)
	draw.Draw(canvas, band, image.NewUniform(color.NRGBA{A: 170}), image.Point{}, draw.Over)

	drawer := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.White), Face: promptFace}
	y := band.Min.Y + padding + promptMetrics.Ascent.Ceil()
	for _, line := range lines {
		drawer.Dot = fixed.P(bounds.Min.X+padding, y)
		drawer.DrawString(line)
		y += promptLineHeight
	}

	drawer = &font.Drawer{Dst: canvas, Src: image.NewUniform(color.NRGBA{R: 209, G: 213, B: 219, A: 255}), Face: metaFace}
	metaY := band.Min.Y + padding + len(lines)*promptLineHeight + metaMetrics.Ascent.Ceil()
	drawer.Dot = fixed.P(bounds.Min.X+padding, metaY)
	drawer.DrawString(metadataLine(item))

	return canvas, nil
}

func metadataLine(item *db.Artwork) string {
	parts := []string{item.Action, item.Size, item.Model}
	if tags := item.TagList(); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	return strings.Join(parts, " • ")
}

// wrapText 以实际测量宽度为准换行，超出行数上限时截断并追加省略号。
func wrapText(face font.Face, text string, maxWidth, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	limit := fixed.I(maxWidth)
	var lines []string
	current := words[0]
	truncated := false
	for _, word := range words[1:] {
		candidate := current + " " + word
		if font.MeasureString(face, candidate) <= limit {
			current = candidate
			continue
		}
		if len(lines) == maxLines-1 {
			truncated = true
			break
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)
	if truncated {
		lines[len(lines)-1] = ellipsize(face, lines[len(lines)-1], limit)
	}
	return lines
}

func ellipsize(face font.Face, line string, limit fixed.Int26_6) string {
	runes := []rune(line)
	for len(runes) > 0 {
		candidate := string(runes) + "…"
		if font.MeasureString(face, candidate) <= limit {
			return candidate
		}
		runes = runes[:len(runes)-1]
	}
	return "…"
}
