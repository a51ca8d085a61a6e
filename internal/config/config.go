package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultEnv          = EnvLocal
	defaultLogLevel     = "info"
	defaultConfigDir    = ".redmine-time-spender"
	defaultNumberOfDays = 31
)

// Auto-refresh buckets. Empty means the user refreshes manually.
const (
	RefreshOff    = ""
	RefreshHourly = "hour"
	RefreshDaily  = "day"
)

type Config struct {
	Env          string `mapstructure:"app_env"`
	RedmineURL   string `mapstructure:"redmine_url"`
	APIKey       string `mapstructure:"redmine_api_key"`
	LogLevel     string `mapstructure:"log_level"`
	ConfigDir    string `mapstructure:"config_dir"`
	DataPath     string `mapstructure:"data_path"`
	KeyPath      string `mapstructure:"key_path"`
	NumberOfDays int    `mapstructure:"number_of_days"`
	AutoRefresh  string `mapstructure:"auto_refresh"`
	HideInactive bool   `mapstructure:"hide_inactive"`
}

// MustLoad reads configuration from environment variables, optionally seeded
// from a .env file next to the binary, and fills in defaults. Paths left at
// their defaults land under ~/<configDir>.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("NUMBER_OF_DAYS", defaultNumberOfDays)
	viper.SetDefault("AUTO_REFRESH", RefreshOff)
	viper.SetDefault("HIDE_INACTIVE", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create config directory: %v\n", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "cache.db")
	}
	keyPath := viper.GetString("KEY_PATH")
	if keyPath == "" {
		keyPath = filepath.Join(configDir, "endpoint.key")
	}

	return &Config{
		Env:          viper.GetString("APP_ENV"),
		RedmineURL:   viper.GetString("REDMINE_URL"),
		APIKey:       viper.GetString("REDMINE_API_KEY"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		ConfigDir:    configDir,
		DataPath:     dataPath,
		KeyPath:      keyPath,
		NumberOfDays: viper.GetInt("NUMBER_OF_DAYS"),
		AutoRefresh:  viper.GetString("AUTO_REFRESH"),
		HideInactive: viper.GetBool("HIDE_INACTIVE"),
	}
}
