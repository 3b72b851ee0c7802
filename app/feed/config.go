package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFeedURL = "https://atwoodknives.blogspot.com/feeds/posts/default?alt=rss"

type MonitorConfig struct {
	Feed         FeedSettings         `yaml:"feed"`
	SoldPatterns []string             `yaml:"sold_patterns"`
	Notification NotificationSettings `yaml:"notification"`
}

type FeedSettings struct {
	URL string `yaml:"url"`
	// BodySelector picks the post body container. An explicit empty string
	// selects readability extraction; absent means DefaultBodySelector.
	BodySelector *string `yaml:"body_selector"`
	Timeout      int     `yaml:"timeout"` // seconds
}

type NotificationSettings struct {
	Title         string `yaml:"title"`
	FallbackTitle string `yaml:"fallback_title"`
	FallbackBody  string `yaml:"fallback_body"`
	FallbackURL   string `yaml:"fallback_url"`
}

func (s FeedSettings) GetTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s FeedSettings) GetBodySelector() string {
	if s.BodySelector == nil {
		return DefaultBodySelector
	}
	return *s.BodySelector
}

func DefaultMonitorConfig() *MonitorConfig {
	cfg := &MonitorConfig{}
	cfg.setDefaults()
	return cfg
}

// LoadMonitorConfig reads the YAML monitor definition. A missing file yields
// the defaults.
func LoadMonitorConfig(path string) (*MonitorConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Monitor configuration not found, using defaults", "path", path)
		return DefaultMonitorConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseMonitorConfig(data)
}

func ParseMonitorConfig(data []byte) (*MonitorConfig, error) {
	var cfg MonitorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	return &cfg, nil
}

func (c *MonitorConfig) setDefaults() {
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.BodySelector == nil {
		selector := DefaultBodySelector
		c.Feed.BodySelector = &selector
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 10
	}
	if len(c.SoldPatterns) == 0 {
		c.SoldPatterns = append([]string(nil), DefaultSoldPatterns...)
	}
	if c.Notification.Title == "" {
		c.Notification.Title = "New Blog Post!"
	}
	if c.Notification.FallbackTitle == "" {
		c.Notification.FallbackTitle = "Atwood Blog"
	}
	if c.Notification.FallbackBody == "" {
		c.Notification.FallbackBody = "New post!"
	}
	if c.Notification.FallbackURL == "" {
		c.Notification.FallbackURL = "https://atwoodknives.blogspot.com/"
	}
}

func (c *MonitorConfig) validate() error {
	u, err := url.Parse(c.Feed.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed URL %q is not absolute", c.Feed.URL)
	}

	if c.Feed.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if _, err := NewClassifier(c.SoldPatterns); err != nil {
		return err
	}

	return nil
}
