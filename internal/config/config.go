package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Install  InstallConfig  `mapstructure:"install"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PathsConfig contains path-related configuration. Every path except Root is
// optional; empty values are derived from Root by paths.NewResolver.
type PathsConfig struct {
	Root       string `mapstructure:"root"`
	DBFile     string `mapstructure:"db_file"`
	CacheFile  string `mapstructure:"cache_file"`
	FeedsFile  string `mapstructure:"feeds_file"`
	LockFile   string `mapstructure:"lock_file"`
	StagingDir string `mapstructure:"staging_dir"`
	LogFile    string `mapstructure:"log_file"`
}

// ResolverConfig contains dependency resolution configuration
type ResolverConfig struct {
	// UpgradePolicy selects the version an upgrade moves to: "lowest"
	// (default) or "highest".
	UpgradePolicy string `mapstructure:"upgrade_policy"`
}

// InstallConfig contains transaction configuration
type InstallConfig struct {
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
	StagingTimeout time.Duration `mapstructure:"staging_timeout"`
	MinFreeMB      int64         `mapstructure:"min_free_mb"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	// Set config name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	// Add config paths
	viper.AddConfigPath("/etc/ipkg")
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "ipkg"))
	}
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.SetEnvPrefix("IPKG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand paths
	cfg.Paths.Root = expandPath(cfg.Paths.Root)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.CacheFile = expandPath(cfg.Paths.CacheFile)
	cfg.Paths.FeedsFile = expandPath(cfg.Paths.FeedsFile)
	cfg.Paths.LockFile = expandPath(cfg.Paths.LockFile)
	cfg.Paths.StagingDir = expandPath(cfg.Paths.StagingDir)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("paths.root", "/")

	viper.SetDefault("resolver.upgrade_policy", "lowest")

	viper.SetDefault("install.lock_timeout", "10s")
	viper.SetDefault("install.staging_timeout", "5m")
	viper.SetDefault("install.min_free_mb", 0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.color", "auto")
}

func validate(cfg *Config) error {
	switch cfg.Resolver.UpgradePolicy {
	case "lowest", "highest":
	default:
		return fmt.Errorf("resolver.upgrade_policy must be \"lowest\" or \"highest\", got %q", cfg.Resolver.UpgradePolicy)
	}
	if cfg.Install.MinFreeMB < 0 {
		return fmt.Errorf("install.min_free_mb cannot be negative")
	}
	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	// Expand environment variables
	path = os.ExpandEnv(path)

	return path
}
