package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Composite.Threshold, 1e-6)
	assert.Equal(t, "above", cfg.Composite.Polarity)
	assert.Equal(t, "none", cfg.Segmenter.Kind)
	assert.Equal(t, 90, cfg.Gallery.JPEGQuality)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/jpg"}, cfg.Upload.AllowedTypes)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: ":9090"
composite:
  threshold: 0.607
  polarity: below
  sampling: bilinear
background:
  urls:
    - http://example.com/bg1.png
segmenter:
  kind: remote
  url: http://localhost:7000/segment
  timeout: 2s
gallery:
  retention: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.InDelta(t, 0.607, cfg.Composite.Threshold, 1e-6)
	assert.Equal(t, "below", cfg.Composite.Polarity)
	assert.Equal(t, "bilinear", cfg.Composite.Sampling)
	assert.Equal(t, []string{"http://example.com/bg1.png"}, cfg.Background.URLs)
	assert.Equal(t, "remote", cfg.Segmenter.Kind)
	assert.Equal(t, 2*time.Second, cfg.Segmenter.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Gallery.Retention)

	// 未覆盖的字段保留默认值
	assert.Equal(t, 1080, cfg.Background.DefaultWidth)
	assert.Equal(t, "debug", cfg.Server.Mode)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// 修改环境变量，不能并行
func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("PLAYABOOTH_SERVER_PORT", ":7070")
	t.Setenv("PLAYABOOTH_SEGMENTER_KIND", "onnx")

	cfg := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, "onnx", cfg.Segmenter.Kind)
	assert.Equal(t, "debug", cfg.Server.Mode)
}
