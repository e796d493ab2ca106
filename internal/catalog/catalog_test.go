package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFallsBackToDefault(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cat.HasModel(DefaultModel) {
		t.Fatalf("expected default catalog to contain %s", DefaultModel)
	}
	if !cat.HasSize(DefaultSize) {
		t.Fatalf("expected default catalog to contain %s", DefaultSize)
	}
}

func TestLoadReadsPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := []byte("sizes:\n  - 640x640\nmodels:\n  - id: gpt-image-1\n  - id: dall-e-3\n    label: DALL-E 3\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write preset file: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Sizes) != 1 || cat.Sizes[0] != "640x640" {
		t.Fatalf("unexpected sizes: %v", cat.Sizes)
	}
	if len(cat.Models) != 2 {
		t.Fatalf("unexpected models: %v", cat.Models)
	}
	if cat.Models[0].Label != "gpt-image-1" {
		t.Fatalf("expected missing label to fall back to id, got %q", cat.Models[0].Label)
	}
	if cat.Models[1].Label != "DALL-E 3" {
		t.Fatalf("unexpected label: %q", cat.Models[1].Label)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !cat.HasModel(DefaultModel) {
		t.Fatalf("expected fallback catalog on error")
	}
}

func TestNormalize(t *testing.T) {
	cat := Default()

	if got := cat.NormalizeSize(""); got != DefaultSize {
		t.Fatalf("expected empty size to normalize to default, got %s", got)
	}
	if got := cat.NormalizeSize("999x999"); got != DefaultSize {
		t.Fatalf("expected unknown size to normalize to default, got %s", got)
	}
	if got := cat.NormalizeSize("512x512"); got != "512x512" {
		t.Fatalf("expected known size to pass through, got %s", got)
	}

	if got := cat.NormalizeModel(""); got != DefaultModel {
		t.Fatalf("expected empty model to normalize to default, got %s", got)
	}
	if got := cat.NormalizeModel("imaginary-model"); got != DefaultModel {
		t.Fatalf("expected unknown model to normalize to default, got %s", got)
	}
	if got := cat.NormalizeModel("dall-e-3"); got != "dall-e-3" {
		t.Fatalf("expected known model to pass through, got %s", got)
	}
}

func TestModelFamily(t *testing.T) {
	if !IsDallE("dall-e-3") {
		t.Fatalf("expected dall-e-3 to be in the dall-e family")
	}
	if IsDallE("gpt-image-1") {
		t.Fatalf("expected gpt-image-1 to be outside the dall-e family")
	}

	if got := CoerceVariationModel("gpt-image-1"); got != VariationModel {
		t.Fatalf("expected coercion to %s, got %s", VariationModel, got)
	}
	if got := CoerceVariationModel("dall-e-2"); got != "dall-e-2" {
		t.Fatalf("expected dall-e-2 to pass through, got %s", got)
	}
}
