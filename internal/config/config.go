// Package config loads the addon manager configuration from an
// optional YAML file and STK_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stkaddons/addonmgr/pkg/addonlib"
	"github.com/stkaddons/addonmgr/pkg/catalog"
)

const defaultConfigName = "addonmgr"

// defaultFeaturedKarts is the curated kart set admitted by the default
// filter policy. It is deliberately an explicit list, overridable via
// filter.featured_karts, rather than something inferred from catalog
// flags.
var defaultFeaturedKarts = []string{
	"gnu",
	"hexley",
	"kiki",
	"pepper",
	"sara-the-racer",
	"xue",
}

type Config struct {
	// AddonsDir is the addon root holding tracks/, karts/, the
	// cached catalog and the installed-state records.
	AddonsDir string

	NewsURL   string
	UserAgent string

	Workers       int
	DispatchDelay time.Duration
	Timeout       time.Duration
	MaxRetries    int

	FeaturedKarts []string
}

// Load reads configuration. The file is optional; defaults plus
// environment are a complete configuration.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(defaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix("STK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addons.dir", "stk/addons")
	v.SetDefault("catalog.news_url", catalog.DefaultNewsURL)
	v.SetDefault("catalog.user_agent", addonlib.DefUserAgent)
	v.SetDefault("download.workers", addonlib.DefConcurrency)
	v.SetDefault("download.dispatch_delay", time.Duration(0))
	v.SetDefault("download.timeout", 60*time.Second)
	v.SetDefault("download.max_retries", addonlib.DEF_MAX_RETRIES)
	v.SetDefault("filter.featured_karts", defaultFeaturedKarts)

	// Config file is optional; env-only is fine.
	_ = v.ReadInConfig()

	cfg := Config{
		AddonsDir:     strings.TrimSpace(v.GetString("addons.dir")),
		NewsURL:       strings.TrimSpace(v.GetString("catalog.news_url")),
		UserAgent:     v.GetString("catalog.user_agent"),
		Workers:       v.GetInt("download.workers"),
		DispatchDelay: v.GetDuration("download.dispatch_delay"),
		Timeout:       v.GetDuration("download.timeout"),
		MaxRetries:    v.GetInt("download.max_retries"),
		FeaturedKarts: v.GetStringSlice("filter.featured_karts"),
	}
	if cfg.AddonsDir == "" {
		return Config{}, fmt.Errorf("addons.dir must not be empty")
	}
	if cfg.Workers < 1 || cfg.Workers > 64 {
		return Config{}, fmt.Errorf("download.workers %d out of range 1..64", cfg.Workers)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("download.max_retries must not be negative")
	}
	return cfg, nil
}
