// Package config loads ttgen configuration.
//
// Layers, lowest precedence first: built-in defaults, a ttgen.yaml file,
// a .env file, TTGEN_* environment variables, then runtime overrides
// (usually command-line flags).
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the config file, the user config directory and the
// environment prefix.
const AppName = "ttgen"

// Config is the resolved ttgen configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Report    ReportConfig    `mapstructure:"report"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Watch     WatchConfig     `mapstructure:"watch"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	// Workers caps the worker pool; zero means one per CPU.
	Workers int `mapstructure:"workers"`

	// RateLimit caps job starts per second; zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus textfile after each run.
	Textfile string `mapstructure:"textfile"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// setDefaults registers the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("scheduler.workers", 0)
	v.SetDefault("scheduler.rate_limit", 0)
	v.SetDefault("report.format", "text")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("watch.debounce", "500ms")
}

// getEnvSpecs lists the supported environment variables.
func getEnvSpecs() []gfconfig.EnvVarSpec {
	prefix := strings.ToUpper(AppName) + "_"
	return []gfconfig.EnvVarSpec{
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: gfconfig.EnvString},
		{Name: prefix + "LOG_FORMAT", Path: []string{"logging", "format"}, Type: gfconfig.EnvString},
		{Name: prefix + "WORKERS", Path: []string{"scheduler", "workers"}, Type: gfconfig.EnvInt},
		{Name: prefix + "RATE_LIMIT", Path: []string{"scheduler", "rate_limit"}, Type: gfconfig.EnvFloat},
		{Name: prefix + "REPORT_FORMAT", Path: []string{"report", "format"}, Type: gfconfig.EnvString},
		{Name: prefix + "METRICS_TEXTFILE", Path: []string{"metrics", "textfile"}, Type: gfconfig.EnvString},
		{Name: prefix + "WATCH_DEBOUNCE", Path: []string{"watch", "debounce"}, Type: gfconfig.EnvString},
	}
}

// getUserConfigPaths lists config file candidates in search order.
func getUserConfigPaths() []string {
	paths := []string{AppName + ".yaml"}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		paths = append(paths, filepath.Join(dir, AppName, AppName+".yaml"))
	}
	return paths
}

// Load resolves configuration from the default file locations.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile resolves configuration reading path instead of searching the
// default locations. An empty path searches. A named file that does not
// exist is an error; a missing default file is not.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	file, err := resolveConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	// Later layers win: env over file, runtime over env.
	for _, layer := range append([]map[string]any{envOverrides}, overrides...) {
		if err := v.MergeConfigMap(layer); err != nil {
			return nil, fmt.Errorf("failed to merge config overrides: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	switch c.Report.Format {
	case "text", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("report.format: unknown format %q", c.Report.Format))
	}
	if c.Scheduler.Workers < 0 {
		errs = append(errs, fmt.Errorf("scheduler.workers: must not be negative"))
	}
	if c.Scheduler.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("scheduler.rate_limit: must not be negative"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce: must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func resolveConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	for _, candidate := range getUserConfigPaths() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}
