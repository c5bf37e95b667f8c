package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "nickname: 小助手\nduration_limit: 0\nbili_cookie: SESSDATA=abc\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Nickname != "小助手" {
		t.Errorf("Nickname = %q", cfg.Nickname)
	}
	if cfg.BiliCookie != "SESSDATA=abc" {
		t.Errorf("BiliCookie = %q", cfg.BiliCookie)
	}
	// Zero and missing numeric fields snap back to defaults.
	if cfg.DurationLimit != 480 {
		t.Errorf("DurationLimit = %d, want 480", cfg.DurationLimit)
	}
	if cfg.VideoMaxMB != 100 {
		t.Errorf("VideoMaxMB = %d, want 100", cfg.VideoMaxMB)
	}
	if cfg.Listen != ":8553" {
		t.Errorf("Listen = %q, want :8553", cfg.Listen)
	}
	if cfg.CacheDir == "" {
		t.Error("CacheDir not defaulted")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("nickname: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadDropsUnknownDisabledPlatforms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "disabled_platforms: [tiktok, nosuch]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.DisabledPlatforms) != 1 || cfg.DisabledPlatforms[0] != "tiktok" {
		t.Errorf("DisabledPlatforms = %v, want [tiktok]", cfg.DisabledPlatforms)
	}
}

func TestEffectiveProxy(t *testing.T) {
	cfg := Default()
	if cfg.EffectiveProxy() == "" {
		t.Error("default proxy should be set for domestic machines")
	}
	cfg.Oversea = true
	if p := cfg.EffectiveProxy(); p != "" {
		t.Errorf("oversea machine still got proxy %q", p)
	}
}

func TestPlatformEnabled(t *testing.T) {
	cfg := Default()
	cfg.DisabledPlatforms = []string{"tiktok", "youtube"}
	if cfg.PlatformEnabled("tiktok") {
		t.Error("tiktok should be disabled")
	}
	if !cfg.PlatformEnabled("bilibili") {
		t.Error("bilibili should stay enabled")
	}
}
