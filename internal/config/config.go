// Package config loads CLI settings. Environment variables (including those
// from .env) override the YAML file, which overrides the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	OpenAIModel   string `mapstructure:"openai_model"`

	DIDAPIKey       string `mapstructure:"d_id_api_key"`
	DIDBaseURL      string `mapstructure:"d_id_base_url"`
	AvatarMaleURL   string `mapstructure:"avatar_male_url"`
	AvatarFemaleURL string `mapstructure:"avatar_female_url"`

	StoreBackend string `mapstructure:"store_backend"`
	TableName    string `mapstructure:"table_name"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	RedisAddr    string `mapstructure:"redis_addr"`

	ChannelSecret       string `mapstructure:"channel_secret"`
	ChannelToken        string `mapstructure:"channel_token"`
	ReminderFunctionArn string `mapstructure:"reminder_function_arn"`
	SchedulerRoleArn    string `mapstructure:"scheduler_role_arn"`

	AuthSecret   string `mapstructure:"auth_secret"`
	ReminderTime string `mapstructure:"reminder_time"`
	Timezone     string `mapstructure:"timezone"`
	Device       string `mapstructure:"device"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Dir is where the CLI keeps its config file and default SQLite database.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".music-tutor"
	}
	return filepath.Join(home, ".music-tutor")
}

func defaults() map[string]any {
	device, err := os.Hostname()
	if err != nil || device == "" {
		device = "local"
	}
	return map[string]any{
		"openai_api_key":        "",
		"openai_base_url":       "",
		"openai_model":          "",
		"d_id_api_key":          "",
		"d_id_base_url":         "",
		"avatar_male_url":       "",
		"avatar_female_url":     "",
		"store_backend":         "sqlite",
		"table_name":            "",
		"sqlite_path":           filepath.Join(Dir(), "tutor.db"),
		"redis_addr":            "",
		"channel_secret":        "",
		"channel_token":         "",
		"reminder_function_arn": "",
		"scheduler_role_arn":    "",
		"auth_secret":           "music-tutor-local",
		"reminder_time":         "19:00",
		"timezone":              "Europe/Istanbul",
		"device":                device,
		"metrics_addr":          ":9090",
	}
}

// Load reads .env into the environment, then merges defaults, environment
// variables and the config file. An explicit path must exist; the default
// ~/.music-tutor/config.yaml is optional.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
