// Package config resolves the uploader settings from defaults, an optional
// YAML file and MISSION_UPLOADER_* environment variables. Command-line flags
// are applied on top by the command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "MISSION_UPLOADER_"

	// PathEnv names a config file when --config is not given.
	PathEnv = envPrefix + "CONFIG"

	// DefaultFileName is looked up in the home directory.
	DefaultFileName = ".mission-uploader.yaml"

	DefaultSettleDelay    = time.Second
	DefaultConnectTimeout = 50 * time.Second
)

// Config holds every setting of one run.
type Config struct {
	Input            string        `yaml:"input"`
	Server           string        `yaml:"server"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	PasswordSSMParam string        `yaml:"passwordSsmParam"`
	LogLevel         string        `yaml:"logLevel"`
	SettleDelay      time.Duration `yaml:"settleDelay"`
	ConnectTimeout   time.Duration `yaml:"connectTimeout"`
	SkipBookmarks    bool          `yaml:"skipBookmarks"`
	NoProgress       bool          `yaml:"noProgress"`
	EmitMetrics      bool          `yaml:"emitMetrics"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		SettleDelay:    DefaultSettleDelay,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Load reads the configuration. path is the explicit config file (--config);
// when empty MISSION_UPLOADER_CONFIG is used, then ~/.mission-uploader.yaml
// if it exists. An explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := true
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		explicit = false
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DefaultFileName)
		}
	}

	if path != "" {
		err := loadFromFile(path, &cfg)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"INPUT":              &cfg.Input,
		"SERVER":             &cfg.Server,
		"USER":               &cfg.User,
		"PASSWORD":           &cfg.Password,
		"PASSWORD_SSM_PARAM": &cfg.PasswordSSMParam,
		"LOG_LEVEL":          &cfg.LogLevel,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SETTLE_DELAY":    &cfg.SettleDelay,
		"CONNECT_TIMEOUT": &cfg.ConnectTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	bools := map[string]*bool{
		"SKIP_BOOKMARKS": &cfg.SkipBookmarks,
		"NO_PROGRESS":    &cfg.NoProgress,
		"EMIT_METRICS":   &cfg.EmitMetrics,
	}
	for name, dst := range bools {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the settings needed before connecting. The password is
// resolved separately.
func (c Config) Validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("server url is required (--server)"))
	}
	if c.User == "" {
		errs = append(errs, errors.New("user name is required (--user)"))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative: %s", c.SettleDelay))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect timeout must be positive: %s", c.ConnectTimeout))
	}
	return errors.Join(errs...)
}
