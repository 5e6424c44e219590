package config

import (
	"os"
	"path/filepath"
	"testing"
)

func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadConfigDefaults(t *testing.T) {
	inDir(t, t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Render.FPS != 24 || cfg.Render.Width != 1280 || cfg.Render.Height != 720 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Render.StylePreset != "synthwave" || cfg.Render.CrossfadeSec != 0.5 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Analysis.HopLength != 512 || cfg.Analysis.FrameLength != 1024 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.JobsPath != filepath.Join("storage", "jobs") {
		t.Errorf("jobs path = %s", cfg.JobsPath)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	inDir(t, dir)

	yaml := "server_port: 9000\nrender:\n  fps: 30\n  style_preset: lofi\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MVGEN_RENDER_WIDTH=640\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MVGEN_RENDER_WIDTH", "")
	os.Unsetenv("MVGEN_RENDER_WIDTH")
	t.Setenv("MVGEN_RENDER_FPS", "12")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerPort != 9000 {
		t.Errorf("server port = %d, want 9000 from file", cfg.ServerPort)
	}
	if cfg.Render.StylePreset != "lofi" {
		t.Errorf("preset = %s, want lofi from file", cfg.Render.StylePreset)
	}
	if cfg.Render.FPS != 12 {
		t.Errorf("fps = %d, want 12 from environment", cfg.Render.FPS)
	}
	if cfg.Render.Width != 640 {
		t.Errorf("width = %d, want 640 from .env", cfg.Render.Width)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"fps too high", "MVGEN_RENDER_FPS", "500"},
		{"tiny width", "MVGEN_RENDER_WIDTH", "4"},
		{"negative crossfade", "MVGEN_RENDER_CROSSFADE_SEC", "-1"},
		{"zero hop", "MVGEN_ANALYSIS_HOP_LENGTH", "0"},
		{"bad format", "MVGEN_LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inDir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}
