// Package config собирает настройки клиента слоями:
//  1. значения по умолчанию
//  2. YAML-файл (явный путь, SOQUETIC_CONFIG, ./soquetic.yaml)
//  3. .env в рабочей директории
//  4. переменные окружения SOQUETIC_*
//  5. проверка
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	URL       string `yaml:"url"`       // если пусто, http://localhost:<port>
	Port      int    `yaml:"port"`      // default: 3000
	Path      string `yaml:"path"`      // default: "/socket.io/"
	Namespace string `yaml:"namespace"` // default: "/"
}

type ClientConfig struct {
	Reconnect         bool          `yaml:"reconnect"`           // default: true
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`     // default: 1s
	ReconnectDelayMax time.Duration `yaml:"reconnect_delay_max"` // default: 30s
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`   // default: 20s
	// Для блокирующих Get/Post в CLI.
	RequestTimeout time.Duration `yaml:"request_timeout"` // default: 10s
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json или console
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      3000,
			Path:      "/socket.io/",
			Namespace: "/",
		},
		Client: ClientConfig{
			Reconnect:         true,
			ReconnectDelay:    time.Second,
			ReconnectDelayMax: 30 * time.Second,
			HandshakeTimeout:  20 * time.Second,
			RequestTimeout:    10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Endpoint возвращает адрес backend'а для подключения.
func (c *Config) Endpoint() string {
	if c.Server.URL != "" {
		return c.Server.URL
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}
