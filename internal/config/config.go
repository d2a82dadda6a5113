package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName       string `mapstructure:"app_name"`
	Env           string `mapstructure:"app_env"`
	LogLevel      string `mapstructure:"log_level"`
	PlatformsFile string `mapstructure:"platforms_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	TargetsFile   string `mapstructure:"targets_file"`

	DiscoveryIntervalSeconds int64         `mapstructure:"discovery_interval"`
	DiscoveryInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	Scheduler SchedulerConfig `mapstructure:",squash"`
	Proxy     ProxyConfig     `mapstructure:",squash"`
	Scoring   ScoringConfig   `mapstructure:",squash"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
}

// SchedulerConfig tunes the discovery scheduler loop.
type SchedulerConfig struct {
	MaxConcurrentTasks  int           `mapstructure:"max_concurrent_tasks"`
	PollIntervalSeconds int64         `mapstructure:"scheduler_poll_seconds"`
	DeferBackoffSeconds int64         `mapstructure:"scheduler_defer_backoff_seconds"`
	PollInterval        time.Duration `mapstructure:"-"`
	DeferBackoff        time.Duration `mapstructure:"-"`
}

// ProxyConfig configures the egress proxy pool.
type ProxyConfig struct {
	ProxyList        string        `mapstructure:"proxy_list"`
	MaxFailures      int           `mapstructure:"proxy_max_failures"`
	ProbeURL         string        `mapstructure:"proxy_probe_url"`
	ProbeTimeoutSecs int64         `mapstructure:"proxy_probe_timeout_seconds"`
	CooldownSeconds  int64         `mapstructure:"proxy_cooldown_seconds"`
	ProbeTimeout     time.Duration `mapstructure:"-"`
	Cooldown         time.Duration `mapstructure:"-"`
}

// Proxies splits the configured comma-separated proxy URLs.
func (p ProxyConfig) Proxies() []string {
	if strings.TrimSpace(p.ProxyList) == "" {
		return nil
	}
	parts := strings.Split(p.ProxyList, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ScoringConfig carries the normalization bounds and heuristics thresholds
// used by the prospect scorer. These are product tuning knobs, kept in
// configuration rather than buried in the scorer.
type ScoringConfig struct {
	MaxNetworkSize       float64 `mapstructure:"scoring_max_network_size"`
	MaxPosts             float64 `mapstructure:"scoring_max_posts"`
	MaxAvgEngagement     float64 `mapstructure:"scoring_max_avg_engagement"`
	MaxFollowers         float64 `mapstructure:"scoring_max_followers"`
	MaxResponseTimeHours float64 `mapstructure:"scoring_max_response_time_hours"`
	ContentTypeCount     float64 `mapstructure:"scoring_content_type_count"`
	GoodEngagementRate   float64 `mapstructure:"scoring_good_engagement_rate"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "prospect-discovery")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("platforms_file", "./configs/platforms.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("targets_file", "./configs/targets.yaml")
	v.SetDefault("discovery_interval", 3600) // seconds
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/prospects.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetDefault("max_concurrent_tasks", 5)
	v.SetDefault("scheduler_poll_seconds", 1)
	v.SetDefault("scheduler_defer_backoff_seconds", 5)

	v.SetDefault("proxy_list", "")
	v.SetDefault("proxy_max_failures", 3)
	v.SetDefault("proxy_probe_url", "https://api.ipify.org?format=json")
	v.SetDefault("proxy_probe_timeout_seconds", 10)
	v.SetDefault("proxy_cooldown_seconds", int64((5*time.Minute)/time.Second))

	v.SetDefault("scoring_max_network_size", 1_000_000.0)
	v.SetDefault("scoring_max_posts", 100.0)
	v.SetDefault("scoring_max_avg_engagement", 1000.0)
	v.SetDefault("scoring_max_followers", 1_000_000.0)
	v.SetDefault("scoring_max_response_time_hours", 24.0)
	v.SetDefault("scoring_content_type_count", 5.0)
	v.SetDefault("scoring_good_engagement_rate", 0.02)

	v.SetDefault("http_timeout_seconds", 15)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DiscoveryIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid discovery_interval (must be positive seconds)")
	}
	cfg.DiscoveryInterval = time.Duration(cfg.DiscoveryIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	if cfg.Scheduler.MaxConcurrentTasks <= 0 {
		cfg.Scheduler.MaxConcurrentTasks = 5
	}
	if cfg.Scheduler.PollIntervalSeconds <= 0 {
		cfg.Scheduler.PollIntervalSeconds = 1
	}
	if cfg.Scheduler.DeferBackoffSeconds <= 0 {
		cfg.Scheduler.DeferBackoffSeconds = 5
	}
	cfg.Scheduler.PollInterval = time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second
	cfg.Scheduler.DeferBackoff = time.Duration(cfg.Scheduler.DeferBackoffSeconds) * time.Second

	if cfg.Proxy.MaxFailures <= 0 {
		cfg.Proxy.MaxFailures = 3
	}
	if cfg.Proxy.ProbeTimeoutSecs <= 0 {
		cfg.Proxy.ProbeTimeoutSecs = 10
	}
	if cfg.Proxy.CooldownSeconds <= 0 {
		cfg.Proxy.CooldownSeconds = int64((5 * time.Minute) / time.Second)
	}
	cfg.Proxy.ProbeTimeout = time.Duration(cfg.Proxy.ProbeTimeoutSecs) * time.Second
	cfg.Proxy.Cooldown = time.Duration(cfg.Proxy.CooldownSeconds) * time.Second

	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = 15
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	return &cfg, nil
}
