// Package config loads pcm settings from an optional YAML file and PCM_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "pcm"
	configFileType = "yaml"
	envPrefix      = "PCM"
)

const (
	KeyAddr             = "addr"
	KeyDriver           = "driver"
	KeyDSN              = "dsn"
	KeyBootstrapAPIKey  = "bootstrap_api_key"
	KeyBootstrapKeyName = "bootstrap_key_name"
	KeyWebhookURL       = "webhook_url"
	KeyWebhookSecret    = "webhook_secret"
	KeyDispatchInterval = "dispatch_interval"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
)

type Settings struct {
	Addr             string        `mapstructure:"addr"`
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	BootstrapAPIKey  string        `mapstructure:"bootstrap_api_key"`
	BootstrapKeyName string        `mapstructure:"bootstrap_key_name"`
	WebhookURL       string        `mapstructure:"webhook_url"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

func defaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyDriver, "sqlite")
	v.SetDefault(KeyDSN, "./pcm.sqlite")
	v.SetDefault(KeyBootstrapAPIKey, "")
	v.SetDefault(KeyBootstrapKeyName, "bootstrap")
	v.SetDefault(KeyWebhookURL, "")
	v.SetDefault(KeyWebhookSecret, "")
	v.SetDefault(KeyDispatchInterval, 2*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load reads settings. With an empty path it looks for pcm.yaml in the working directory
// and a missing file is not an error; an explicit path must exist.
func Load(path string) (Settings, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}
