package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "SOQUETIC_"
	envConfigPath  = envPrefix + "CONFIG"
	defaultFile    = "soquetic.yaml"
	defaultEnvFile = ".env"
)

// Load читает конфиг по слоям. Переменные окружения важнее файла,
// уже выставленные переменные не перетираются значениями из .env.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", defaultEnvFile, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	if _, err := os.Stat(defaultFile); err == nil {
		return defaultFile
	}
	return ""
}

// loadYAMLFile накладывает файл поверх cfg; отсутствующие поля не трогаются.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	return errors.Join(
		loadEnvString(&cfg.Server.URL, "URL"),
		loadEnvInt(&cfg.Server.Port, "PORT"),
		loadEnvString(&cfg.Server.Path, "PATH"),
		loadEnvString(&cfg.Server.Namespace, "NAMESPACE"),
		loadEnvBool(&cfg.Client.Reconnect, "RECONNECT"),
		loadEnvDuration(&cfg.Client.ReconnectDelay, "RECONNECT_DELAY"),
		loadEnvDuration(&cfg.Client.ReconnectDelayMax, "RECONNECT_DELAY_MAX"),
		loadEnvDuration(&cfg.Client.HandshakeTimeout, "HANDSHAKE_TIMEOUT"),
		loadEnvDuration(&cfg.Client.RequestTimeout, "REQUEST_TIMEOUT"),
		loadEnvString(&cfg.Log.Level, "LOG_LEVEL"),
		loadEnvString(&cfg.Log.Format, "LOG_FORMAT"),
	)
}

// Хелперы меняют target только если переменная задана.

func loadEnvString(target *string, key string) error {
	if v := os.Getenv(envPrefix + key); v != "" {
		*target = v
	}
	return nil
}

func loadEnvInt(target *int, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s%s: %v", envPrefix, key, err)
	}
	*target = parsed
	return nil
}

func loadEnvBool(target *bool, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean value for %s%s: %v", envPrefix, key, err)
	}
	*target = parsed
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration value for %s%s: %v", envPrefix, key, err)
	}
	*target = parsed
	return nil
}
