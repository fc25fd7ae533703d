package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidConfig marks configuration problems detected before any fetch.
var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // text or json
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// XConfig controls the X API post source.
type XConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	WebBaseURL  string `mapstructure:"web_base_url"` // canonical post links
	BearerToken string `mapstructure:"bearer_token"`
	UserID      string `mapstructure:"user_id"`  // looked up via /2/users/me when empty
	Username    string `mapstructure:"username"` // looked up via /2/users/me when empty
	PageSize    int    `mapstructure:"page_size"`
	Timeout     string `mapstructure:"timeout"` // duration string, e.g., "20s"
}

// OutputConfig controls where and how day documents are written.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	FilenameFormat string `mapstructure:"filename_format"` // Go time layout, without extension
	HeadingFormat  string `mapstructure:"heading_format"`  // Go time layout
	DocType        string `mapstructure:"doc_type"`
}

// CacheConfig selects the snapshot and link-title storage backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"` // file or redis
	Dir     string `mapstructure:"dir"`
	TTL     string `mapstructure:"ttl"` // redis only; "0" keeps entries forever
}

// LinksConfig controls short-link title resolution.
type LinksConfig struct {
	Timeout      string   `mapstructure:"timeout"`
	MaxRedirects int      `mapstructure:"max_redirects"`
	Workers      int      `mapstructure:"workers"`
	SkipHosts    []string `mapstructure:"skip_hosts"`
}

// MediaConfig controls attachment downloads. Photos are stored as WebP.
type MediaConfig struct {
	Disabled    bool   `mapstructure:"disabled"`
	Dir         string `mapstructure:"dir"` // relative to output.dir
	WebPQuality int    `mapstructure:"webp_quality"`
	Timeout     string `mapstructure:"timeout"`
}

// ScheduleConfig controls the serve command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Config is the top-level configuration structure.
type Config struct {
	App         AppConfig      `mapstructure:"app"`
	X           XConfig        `mapstructure:"x"`
	Output      OutputConfig   `mapstructure:"output"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Links       LinksConfig    `mapstructure:"links"`
	Media       MediaConfig    `mapstructure:"media"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	CostPerPost float64        `mapstructure:"cost_per_post"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "text"
	}
	if c.X.BaseURL == "" {
		c.X.BaseURL = "https://api.x.com"
	}
	if c.X.WebBaseURL == "" {
		c.X.WebBaseURL = "https://x.com"
	}
	if c.X.PageSize <= 0 || c.X.PageSize > 100 {
		c.X.PageSize = 100
	}
	if c.X.Timeout == "" {
		c.X.Timeout = "20s"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./x-posts"
	}
	if c.Output.FilenameFormat == "" {
		c.Output.FilenameFormat = "x-post-2006-01-02"
	}
	if c.Output.HeadingFormat == "" {
		c.Output.HeadingFormat = "2006-01-02 15:04"
	}
	if c.Output.DocType == "" {
		c.Output.DocType = "x-posts"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.Output.Dir, ".cache")
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "0"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Links.Timeout == "" {
		c.Links.Timeout = "5s"
	}
	if c.Links.MaxRedirects <= 0 {
		c.Links.MaxRedirects = 5
	}
	if c.Links.Workers <= 0 {
		c.Links.Workers = 4
	}
	if len(c.Links.SkipHosts) == 0 {
		c.Links.SkipHosts = []string{"x.com", "twitter.com"}
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "media"
	}
	if c.Media.WebPQuality <= 0 || c.Media.WebPQuality > 100 {
		c.Media.WebPQuality = 80
	}
	if c.Media.Timeout == "" {
		c.Media.Timeout = "30s"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "10 0 * * *"
	}
	if c.CostPerPost == 0 {
		c.CostPerPost = 0.005
	}
}

// Validate checks settings required before the first fetch.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.X.BearerToken) == "" {
		problems = append(problems, "x.bearer_token is required")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		problems = append(problems, "output.dir is required")
	}
	if filepath.IsAbs(c.Media.Dir) || strings.HasPrefix(filepath.Clean(c.Media.Dir), "..") {
		problems = append(problems, "media.dir must be relative to output.dir")
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "file", "redis":
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q must be file or redis", c.Cache.Backend))
	}
	durations := []struct{ name, value string }{
		{"x.timeout", c.X.Timeout},
		{"links.timeout", c.Links.Timeout},
		{"cache.ttl", c.Cache.TTL},
		{"media.timeout", c.Media.Timeout},
	}
	for _, d := range durations {
		if _, err := time.ParseDuration(d.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", d.name, err))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// Duration parses a duration setting already checked by Validate.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
