package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the catalog binaries. Values come from an
// optional config.yaml plus ATLAS_-prefixed environment variables; env wins.
type Config struct {
	Port              int           `mapstructure:"port"`
	DatabaseDriver    string        `mapstructure:"databaseDriver"` // sqlite or postgres
	DatabasePath      string        `mapstructure:"databasePath"`
	DatabaseDSN       string        `mapstructure:"databaseDsn"`
	JWTSecret         string        `mapstructure:"jwtSecret"`
	ReconcileSchedule string        `mapstructure:"reconcileSchedule"`
	StoreTimeout      time.Duration `mapstructure:"storeTimeout"`
}

// Load reads configuration from the given directory (or the working directory
// when empty). A missing config file is not an error; defaults and environment
// variables cover everything.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("atlas")
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("databaseDriver", "sqlite")
	v.SetDefault("databasePath", "token-atlas.db")
	v.SetDefault("databaseDsn", "")
	v.SetDefault("jwtSecret", "")
	v.SetDefault("reconcileSchedule", "@every 10m")
	v.SetDefault("storeTimeout", 10*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
