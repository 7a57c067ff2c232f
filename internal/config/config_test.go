package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
guide:
  guideRasterX0: 100
  guideRasterY0: 200
  holeNullX: 115.5
  holeNullY: 215.5
capabilities:
  isuPresent: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Guide.GuideRasterX0 != 100 || cfg.Guide.HoleNullY != 215.5 {
		t.Errorf("unexpected guide config: %+v", cfg.Guide)
	}
	if !cfg.Capabilities.ISUPresent {
		t.Error("want ISUPresent true")
	}
	if cfg.Network.CommandPort != 915 {
		t.Errorf("want default command port 915, got %d", cfg.Network.CommandPort)
	}
}

func TestLoadRejectsOutOfRangeRaster(t *testing.T) {
	path := writeTempConfig(t, `
guide:
  guideRasterX0: 9000
  guideRasterY0: 200
  holeNullX: 115.5
  holeNullY: 215.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("want error for out-of-range guideRasterX0")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("want error for missing config file")
	}
}
