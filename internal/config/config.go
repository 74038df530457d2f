package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   *ServerConfig `mapstructure:"server"`
	LogLevel string        `mapstructure:"log_level"`
}

type ServerConfig struct {
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	FeedPort int    `mapstructure:"feed_port"`
	Workers  int    `mapstructure:"workers"`
}

// Load reads the YAML config at configPath. Missing keys fall back to
// the defaults below.
func Load(configPath string) (*Config, error) {
	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.port", 9001)
	viper.SetDefault("server.feed_port", 9002)
	viper.SetDefault("server.workers", 10)
	viper.SetDefault("log_level", "info")

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
