// Package config holds the settings of the molcache tool. They come
// from a yaml file, MOLCACHE_* environment variables and defaults, in
// that order of precedence after the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const envPrefix = "MOLCACHE"

// Defaults.
const (
	DfltCacheSize = "10 MiB"
	DfltTimeout   = 30 * time.Second
	DfltLogLevel  = "info"
	DfltWorkers   = 3
)

// Config is everything the command line tool can be told.
type Config struct {
	CacheDir  string        `mapstructure:"cache_dir"`
	CacheSize string        `mapstructure:"cache_size"` // like "10 MiB" or "500kB"
	Archive   string        `mapstructure:"archive"`    // top of a local PDB mirror
	Timeout   time.Duration `mapstructure:"timeout"`    // for a whole fetch run, zero means none
	LogLevel  string        `mapstructure:"log_level"`
	Hydrogens bool          `mapstructure:"hydrogens"`
	Workers   int           `mapstructure:"workers"`

	cacheBytes int64
}

// DfltCacheDir is molcache under the user's cache directory.
func DfltCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "molcache")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Env variables are only seen for keys viper knows about.
	v.SetDefault("cache_dir", DfltCacheDir())
	v.SetDefault("cache_size", DfltCacheSize)
	v.SetDefault("archive", "")
	v.SetDefault("timeout", DfltTimeout)
	v.SetDefault("log_level", DfltLogLevel)
	v.SetDefault("hydrogens", false)
	v.SetDefault("workers", DfltWorkers)
	return v
}

// Load reads the yaml file at path, if path is not empty, lets the
// environment override it and checks the result.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default is the configuration with nothing set.
func Default() *Config {
	cfg := &Config{
		CacheDir:  DfltCacheDir(),
		CacheSize: DfltCacheSize,
		Timeout:   DfltTimeout,
		LogLevel:  DfltLogLevel,
		Workers:   DfltWorkers,
	}
	if err := cfg.Validate(); err != nil {
		panic(err) // the defaults are wrong
	}
	return cfg
}

// Validate checks every field and works out the cache size in bytes.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir is empty"))
	}
	n, err := humanize.ParseBytes(cfg.CacheSize)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("cache_size %q: %w", cfg.CacheSize, err))
	case n == 0 || n > 1<<62:
		errs = append(errs, fmt.Errorf("cache_size %q out of range", cfg.CacheSize))
	default:
		cfg.cacheBytes = int64(n)
	}
	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %v is negative", cfg.Timeout))
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers %d, need at least 1", cfg.Workers))
	}
	return errors.Join(errs...)
}

// CacheBytes is CacheSize in bytes. It is only set after Validate.
func (cfg *Config) CacheBytes() int64 { return cfg.cacheBytes }

// Logger makes a logger at the configured level, writing to stderr.
func (cfg *Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// Write saves the configuration as yaml, in a form Load can read.
func (cfg *Config) Write(path string) error {
	doc := yaml.MapSlice{
		{Key: "cache_dir", Value: cfg.CacheDir},
		{Key: "cache_size", Value: cfg.CacheSize},
		{Key: "archive", Value: cfg.Archive},
		{Key: "timeout", Value: cfg.Timeout.String()},
		{Key: "log_level", Value: cfg.LogLevel},
		{Key: "hydrogens", Value: cfg.Hydrogens},
		{Key: "workers", Value: cfg.Workers},
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
