package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Audit
		Remote
		Refresh
		Plugins
		Tasks
		Session

		v *viper.Viper
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Audit struct {
		Dir             string
		RetentionDays   int    // Days to keep audit events (default: 30)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Remote struct {
		ProxyEnabled   bool
		ProxyURL       string // Template with {url} and {ttl} placeholders
		DefaultRefresh time.Duration
		FetchTimeout   time.Duration
		MaxBytes       int64
	}
	Refresh struct {
		Enabled  bool
		Schedule string // Cron format: "*/5 * * * *" = every 5 minutes
	}
	Plugins struct {
		Keys     []string
		Settings map[string]map[string]any
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Session struct {
		Lifetime      time.Duration
		SecureCookies bool // Set to false for local dev without HTTPS
		CSRFSecret    string
	}
)

// NewConfig reads configuration from the environment and, when
// MAPIMPORT_CONFIG names a file, from that YAML file. Environment variables
// win over the file.
func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	// Remote data defaults
	v.SetDefault("remote_proxy_enabled", false)
	v.SetDefault("remote_proxy_url", "")
	v.SetDefault("remote_default_refresh", "5m")
	v.SetDefault("remote_fetch_timeout", "30s")
	v.SetDefault("remote_max_bytes", DefaultMaxRemoteBytes)
	v.SetDefault("remote_refresh_enabled", true)
	v.SetDefault("remote_refresh_schedule", "*/5 * * * *")

	v.SetDefault("import_plugins", "overpass,datasets")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Session defaults
	v.SetDefault("session_lifetime", "24h")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("csrf_secret", "")

	if file := v.GetString(ConfigFileEnv); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Failed to read config file %s: %v", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Audit: Audit{
			Dir:             v.GetString("AUDIT_DIR"),
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Remote: Remote{
			ProxyEnabled:   v.GetBool("REMOTE_PROXY_ENABLED"),
			ProxyURL:       v.GetString("REMOTE_PROXY_URL"),
			DefaultRefresh: v.GetDuration("REMOTE_DEFAULT_REFRESH"),
			FetchTimeout:   v.GetDuration("REMOTE_FETCH_TIMEOUT"),
			MaxBytes:       v.GetInt64("REMOTE_MAX_BYTES"),
		},
		Refresh: Refresh{
			Enabled:  v.GetBool("REMOTE_REFRESH_ENABLED"),
			Schedule: v.GetString("REMOTE_REFRESH_SCHEDULE"),
		},
		Plugins: Plugins{
			Keys:     pluginKeys(v.Get("IMPORT_PLUGINS")),
			Settings: pluginSettings(v.GetStringMap("plugins")),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Session: Session{
			Lifetime:      v.GetDuration("SESSION_LIFETIME"),
			SecureCookies: v.GetBool("SECURE_COOKIES"),
			CSRFSecret:    v.GetString("CSRF_SECRET"),
		},
		v: v,
	}
}

// pluginKeys accepts a comma separated list (environment) or a YAML list.
func pluginKeys(raw any) []string {
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = cast.ToStringSlice(raw)
	}

	keys := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		key := strings.TrimSpace(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func pluginSettings(raw map[string]any) map[string]map[string]any {
	settings := make(map[string]map[string]any, len(raw))
	for key, block := range raw {
		m, err := cast.ToStringMapE(block)
		if err != nil {
			log.Printf("[PLUGINS] Ignoring settings of %s: %v", key, err)
			continue
		}
		settings[key] = m
	}
	return settings
}

// ConfigFile returns the configuration file in use, if any.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.Remote.ProxyEnabled && c.Remote.ProxyURL != "" && !strings.Contains(c.Remote.ProxyURL, "{url}") {
		return fmt.Errorf("REMOTE_PROXY_URL must contain a {url} placeholder")
	}
	if c.Tasks.Enabled && c.Tasks.Workers <= 0 {
		return fmt.Errorf("TASK_WORKERS must be positive, got %d", c.Tasks.Workers)
	}
	return nil
}

// WatchPlugins calls onChange with the reloaded plugin settings whenever the
// configuration file changes. It does nothing without a configuration file.
func (c *Config) WatchPlugins(onChange func(Plugins)) bool {
	if c.ConfigFile() == "" {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed: %s", e.Name)
		reloaded := fromViper(c.v)
		onChange(reloaded.Plugins)
	})
	c.v.WatchConfig()
	return true
}
