// Package config loads the gateway configuration from yaml and environment
// variables via viper and validates it before the app starts.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/util"
)

const (
	DefaultPort = 19620
	DefaultHost = "localhost"
)

// yamlTags makes viper decode by the yaml struct tags, so file keys such as
// max_connections_per_host land on their fields.
func yamlTags(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			EventLoops:      0, // 0 means one per CPU
			IdleTimeout:     65 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Pool: PoolConfig{
			IdleTimeout:           constants.DefaultIdleTimeout,
			ConnectTimeout:        constants.DefaultConnectTimeout,
			MaxConnectionsPerHost: constants.DefaultMaxConnectionsPerHost,
			PerServerWaterline:    constants.DefaultPerServerWaterline,
		},
		Balancer: BalancerConfig{
			Strategy: "least_connections",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogDir:     "./logs",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			FileOutput: false,
		},
		Engineering: EngineeringConfig{
			MetricsEnabled: true,
			MetricsAddress: ":9090",
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix(constants.DefaultEnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have GANTRY_CONFIG_FILE env var
		if configFile := os.Getenv(constants.DefaultEnvPrefix + "_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config, yamlTags); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.Filename = viper.ConfigFileUsed()

	cidrs, err := util.ParseTrustedCIDRs(config.Server.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted_proxy_cidrs: %w", err)
	}
	config.Server.TrustedProxyCIDRsParsed = cidrs

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Watch registers onChange to run whenever the config file on disk changes.
// Changes apply to pools created after the reload; existing pools keep the
// configuration they were built with.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		fresh := DefaultConfig()
		if err := viper.Unmarshal(fresh, yamlTags); err != nil {
			return
		}
		if cidrs, err := util.ParseTrustedCIDRs(fresh.Server.TrustedProxyCIDRs); err == nil {
			fresh.Server.TrustedProxyCIDRsParsed = cidrs
		}
		if err := fresh.Validate(); err != nil {
			return
		}
		onChange(fresh)
	})
	viper.WatchConfig()
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.EventLoops < 0 {
		return fmt.Errorf("server.event_loops must not be negative")
	}
	if c.Pool.MaxConnectionsPerHost < -1 || c.Pool.MaxConnectionsPerHost == 0 {
		return fmt.Errorf("pool.max_connections_per_host must be -1 or positive")
	}
	if c.Pool.PerServerWaterline < -1 {
		return fmt.Errorf("pool.per_server_waterline must be -1 or non-negative")
	}
	if c.Pool.ConnectTimeout <= 0 {
		return fmt.Errorf("pool.connect_timeout must be positive")
	}
	if len(c.Origins) == 0 {
		return fmt.Errorf("at least one origin must be configured")
	}
	seen := make(map[string]bool, len(c.Origins))
	for _, origin := range c.Origins {
		if origin.Name == "" {
			return fmt.Errorf("origin without a name")
		}
		if seen[origin.Name] {
			return fmt.Errorf("duplicate origin %q", origin.Name)
		}
		seen[origin.Name] = true
		if len(origin.Servers) == 0 {
			return fmt.Errorf("origin %q has no servers", origin.Name)
		}
		for _, server := range origin.Servers {
			if server.Host == "" {
				return fmt.Errorf("origin %q has a server without a host", origin.Name)
			}
			if server.Port < 1 || server.Port > 65535 {
				return fmt.Errorf("origin %q server port %d out of range", origin.Name, server.Port)
			}
		}
	}
	return nil
}
