package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Chris-Boho/stingray-vrm-sub000/pkg/db"
)

type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	Database db.Config    `mapstructure:"database"`
	Log      LogConfig    `mapstructure:"log"`
	Editor   EditorConfig `mapstructure:"editor"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EditorConfig controls how edits are batched and written back.
type EditorConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Retry    RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Jitter     bool          `mapstructure:"jitter"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3003"})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("database.uri", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_timeout", 10*time.Second)

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "json")

	v.SetDefault("editor.debounce", 300*time.Millisecond)
	v.SetDefault("editor.retry.max_retries", 3)
	v.SetDefault("editor.retry.base_delay", 200*time.Millisecond)
	v.SetDefault("editor.retry.max_delay", 5*time.Second)
	v.SetDefault("editor.retry.jitter", true)
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. Environment keys use the VRM_ prefix with dots replaced by
// underscores (VRM_SERVER_ADDR); DATABASE_URL is honoured for the database uri.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix("VRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.uri", "VRM_DATABASE_URI", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind database env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
