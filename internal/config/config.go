package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Platform names accepted in the disabled list
var KnownPlatforms = []string{
	"bilibili", "weibo", "xiaohongshu", "ncm", "kugou", "tiktok", "youtube",
}

// Config holds all runtime settings. It is loaded once at startup and passed
// explicitly to the components that need it.
type Config struct {
	// Nickname prefixes every reply, matching the bot's display name
	Nickname string `yaml:"nickname"`
	// Proxy URL, e.g. http://127.0.0.1:7890
	Proxy string `yaml:"proxy"`
	// Oversea disables the proxy (the machine already sits outside the wall)
	Oversea bool `yaml:"oversea"`

	// Per-platform cookies
	BiliCookie string `yaml:"bili_cookie"`
	XhsCookie  string `yaml:"xhs_cookie"`
	YtbCookie  string `yaml:"ytb_cookie"`

	// Videos longer than this (seconds) are described but not downloaded
	DurationLimit int `yaml:"duration_limit"`
	// Videos larger than this (MB) are sent as plain files
	VideoMaxMB int `yaml:"video_max_mb"`
	// Also attach audio results as uploadable files
	NeedUpload bool `yaml:"need_upload"`

	DisabledPlatforms []string `yaml:"disabled_platforms"`

	CacheDir string `yaml:"cache_dir"`
	Listen   string `yaml:"listen"`
}

// Default returns the fallback configuration used when no file exists.
func Default() *Config {
	return &Config{
		Proxy:         "http://127.0.0.1:7890",
		DurationLimit: 480,
		VideoMaxMB:    100,
		Listen:        ":8553",
	}
}

// ConfigDir returns the directory holding the config file.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "resolver"), nil
}

// SavePath returns the full path of the config file.
func SavePath() string {
	dir, err := ConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(dir, configFileName)
}

// Exists reports whether a config file has been written.
func Exists() bool {
	_, err := os.Stat(SavePath())
	return err == nil
}

// Load reads the config file at path and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadOrDefault reads the user config file, falling back to defaults if it is
// missing or unreadable.
func LoadOrDefault() *Config {
	cfg, err := Load(SavePath())
	if err != nil {
		cfg = Default()
		cfg.normalize()
	}
	return cfg
}

// Save writes the config back to the user config file.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(SavePath(), data, 0o600)
}

func (c *Config) normalize() {
	if c.DurationLimit <= 0 {
		c.DurationLimit = 480
	}
	if c.VideoMaxMB <= 0 {
		c.VideoMaxMB = 100
	}
	if c.Listen == "" {
		c.Listen = ":8553"
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(os.TempDir(), "resolver-cache")
	}
	// The disabled list only keeps names we actually route on.
	kept := c.DisabledPlatforms[:0]
	for _, p := range c.DisabledPlatforms {
		for _, known := range KnownPlatforms {
			if p == known {
				kept = append(kept, p)
				break
			}
		}
	}
	c.DisabledPlatforms = kept
}

// EffectiveProxy returns the proxy URL to use, or "" when the machine is
// flagged as oversea and can reach the platforms directly.
func (c *Config) EffectiveProxy() string {
	if c.Oversea {
		return ""
	}
	return c.Proxy
}

// PlatformEnabled reports whether the named platform should handle messages.
func (c *Config) PlatformEnabled(name string) bool {
	for _, p := range c.DisabledPlatforms {
		if p == name {
			return false
		}
	}
	return true
}
