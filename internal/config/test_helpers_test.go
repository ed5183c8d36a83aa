package config

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:         5500,
			LogLevel:           "info",
			StoragePath:        "./storage",
			UpstreamTimeout:    Duration(30 * 1e9),
			ThumbnailMaxWidth:  250,
			ThumbnailMaxHeight: 350,
			ThumbnailQuality:   80,
		},
		Libraries: []LibraryConfig{
			{
				Name:     "homelab",
				Upstream: "http://nas.local:8080/manga",
			},
		},
	}
}
