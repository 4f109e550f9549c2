package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

// Defaults applied by Load when the TOML file omits a value.
const (
	DefaultPublishInterval = 30 * time.Second
	DefaultModsCacheTTL    = 5 * time.Minute
	DefaultListen          = "127.0.0.1:8420"
	DefaultBasePath        = "/api"
)

// Config is the top-level TOML structure.
type Config struct {
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Publisher PublisherConfig `toml:"publisher" mapstructure:"publisher"`
	Journal   JournalConfig   `toml:"journal" mapstructure:"journal"`
	HTTP      HTTPConfig      `toml:"http" mapstructure:"http"`
	Mods      ModsConfig      `toml:"mods" mapstructure:"mods"`
	Restart   RestartConfig   `toml:"restart" mapstructure:"restart"`
}

type ServerConfig struct {
	Directory   string        `toml:"directory" mapstructure:"directory"`
	Command     string        `toml:"command" mapstructure:"command"`
	StopCommand string        `toml:"stop_command" mapstructure:"stop_command"`
	StopTimeout time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	Env         []string      `toml:"env" mapstructure:"env"`
	EnvFiles    []string      `toml:"env_files" mapstructure:"env_files"`
}

type LogConfig struct {
	File         string `toml:"file" mapstructure:"file"`
	MaxSizeMB    int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups   int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays   int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress     bool   `toml:"compress" mapstructure:"compress"`
	SummaryLines int    `toml:"summary_lines" mapstructure:"summary_lines"`
	TailMax      int    `toml:"tail_max" mapstructure:"tail_max"`
}

type PublisherConfig struct {
	Interval   time.Duration `toml:"interval" mapstructure:"interval"`
	WebhookURL string        `toml:"webhook_url" mapstructure:"webhook_url"`
}

type JournalConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type ModsConfig struct {
	Dir      string        `toml:"dir" mapstructure:"dir"`
	CacheTTL time.Duration `toml:"cache_ttl" mapstructure:"cache_ttl"`
}

type RestartConfig struct {
	Schedule string `toml:"schedule" mapstructure:"schedule"`
}

// Load reads a TOML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Publisher.Interval <= 0 {
		c.Publisher.Interval = DefaultPublishInterval
	}
	if c.Mods.CacheTTL <= 0 {
		c.Mods.CacheTTL = DefaultModsCacheTTL
	}
	if c.Mods.Dir == "" && c.Server.Directory != "" {
		c.Mods.Dir = filepath.Join(c.Server.Directory, "mods")
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultListen
	}
	if c.HTTP.BasePath == "" {
		c.HTTP.BasePath = DefaultBasePath
	}
	c.HTTP.BasePath = "/" + strings.Trim(c.HTTP.BasePath, "/")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.Command) == "" {
		return fmt.Errorf("config: server.command is required")
	}
	return nil
}

// SupervisorSpec maps the file config onto the supervisor's spec.
// Env file entries load first so inline env overrides them.
func (c *Config) SupervisorSpec() (supervisor.Spec, error) {
	env, err := mergeEnv(c.Server.EnvFiles, c.Server.Env)
	if err != nil {
		return supervisor.Spec{}, err
	}
	return supervisor.Spec{
		Directory:   c.Server.Directory,
		Command:     c.Server.Command,
		Env:         env,
		StopCommand: c.Server.StopCommand,
		StopTimeout: c.Server.StopTimeout,
		Log: logger.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
		SummaryLines: c.Log.SummaryLines,
		TailMax:      c.Log.TailMax,
	}, nil
}

func mergeEnv(files, inline []string) ([]string, error) {
	m := make(map[string]string)
	order := make([]string, 0)
	set := func(kv string) {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return
		}
		k, val := kv[:i], kv[i+1:]
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = val
	}
	for _, p := range files {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			set(kv)
		}
	}
	for _, kv := range inline {
		set(kv)
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// loadEnvFile parses KEY=VALUE lines. Blank lines and # comments are ignored.
func loadEnvFile(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}
