// Package config provides a loader for ledger node configuration files
// and environment variables.
package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/modulesio/crds/pkg/utils"
)

// Config is the unified configuration for a ledger node.
type Config struct {
	DataDirectory  string   `mapstructure:"data_directory" json:"data_directory"`
	ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
	SelfURL        string   `mapstructure:"self_url" json:"self_url"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	LogLevel       string   `mapstructure:"log_level" json:"log_level"`
}

// defaults reads fallback values from the environment before viper's
// config-file/AutomaticEnv layers apply on top, mirroring the
// teacher's own EnvOrDefault-seeded config bootstrap.
func defaults() Config {
	return Config{
		DataDirectory: utils.EnvOrDefault("LEDGERNODE_DATA_DIRECTORY", "./data"),
		ListenAddr:    utils.EnvOrDefault("LEDGERNODE_LISTEN_ADDR", "127.0.0.1:8080"),
		SelfURL:       utils.EnvOrDefault("LEDGERNODE_SELF_URL", "http://127.0.0.1:8080"),
		LogLevel:      utils.EnvOrDefault("LEDGERNODE_LOG_LEVEL", "info"),
	}
}

// Load reads configPath (a YAML file) if non-empty, merges a ./.env file if
// present, merges environment variable overrides, and returns the resulting
// configuration.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("data_directory", cfg.DataDirectory)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("self_url", cfg.SelfURL)
	v.SetDefault("log_level", cfg.LogLevel)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.Wrap(err, "load config")
		}
	}

	v.SetEnvPrefix("LEDGERNODE")
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}
