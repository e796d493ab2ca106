package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultModel 是缺省的生成模型
	DefaultModel = "gpt-image-1"
	// DefaultSize 是缺省的输出分辨率
	DefaultSize = "1024x1024"
	// VariationModel 是变体接口唯一支持的模型族成员
	VariationModel = "dall-e-2"

	familyDallE = "dall-e"
)

// ModelPreset 描述一个可选的生成模型。
type ModelPreset struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Catalog 汇总工作台可选的模型与分辨率。
type Catalog struct {
	Sizes  []string      `yaml:"sizes"`
	Models []ModelPreset `yaml:"models"`
}

// Default 返回内置的模型与分辨率清单。
func Default() Catalog {
	return Catalog{
		Sizes: []string{"256x256", "512x512", "1024x1024", "1536x1024", "1024x1536"},
		Models: []ModelPreset{
			{ID: "gpt-image-1", Label: "GPT Image 1"},
			{ID: "dall-e-3", Label: "DALL·E 3"},
			{ID: "dall-e-2", Label: "DALL·E 2"},
		},
	}
}

// Load 读取 YAML 预设文件，path 为空时返回内置清单。
// 文件缺失的字段回退到内置值。
func Load(path string) (Catalog, error) {
	fallback := Default()
	if strings.TrimSpace(path) == "" {
		return fallback, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fallback, fmt.Errorf("read model preset file: %w", err)
	}

	var loaded Catalog
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fallback, fmt.Errorf("parse model preset file: %w", err)
	}

	if len(loaded.Sizes) == 0 {
		loaded.Sizes = fallback.Sizes
	}
	if len(loaded.Models) == 0 {
		loaded.Models = fallback.Models
	}
	for i, model := range loaded.Models {
		if strings.TrimSpace(model.Label) == "" {
			loaded.Models[i].Label = model.ID
		}
	}
	return loaded, nil
}

// HasSize reports whether the size is part of the catalog.
func (c Catalog) HasSize(size string) bool {
	for _, s := range c.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// HasModel reports whether the model id is part of the catalog.
func (c Catalog) HasModel(id string) bool {
	for _, m := range c.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// NormalizeSize falls back to the default size when the value is empty or unknown.
func (c Catalog) NormalizeSize(size string) string {
	size = strings.TrimSpace(size)
	if size == "" || !c.HasSize(size) {
		return DefaultSize
	}
	return size
}

// NormalizeModel falls back to the default model when the value is empty or unknown.
func (c Catalog) NormalizeModel(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !c.HasModel(id) {
		return DefaultModel
	}
	return id
}

// IsDallE reports whether the model belongs to the dall-e family.
// 模型族通过命名前缀约定区分。
func IsDallE(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), familyDallE)
}

// CoerceVariationModel maps any non dall-e model to the variation-capable model.
func CoerceVariationModel(model string) string {
	if IsDallE(model) {
		return strings.TrimSpace(model)
	}
	return VariationModel
}
