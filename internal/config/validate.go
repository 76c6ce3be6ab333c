package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Validate проверяет всё сразу и возвращает все найденные проблемы.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("server.url: %v", err))
		case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss":
			errs = append(errs, fmt.Errorf("server.url must be http(s) or ws(s), got %q", c.Server.URL))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("server.url has no host: %q", c.Server.URL))
		}
	} else if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with \"/\", got %q", c.Server.Path))
	}
	if !strings.HasPrefix(c.Server.Namespace, "/") {
		errs = append(errs, fmt.Errorf("server.namespace must start with \"/\", got %q", c.Server.Namespace))
	}

	if c.Client.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("client.reconnect_delay must be > 0, got %s", c.Client.ReconnectDelay))
	}
	if c.Client.ReconnectDelayMax < c.Client.ReconnectDelay {
		errs = append(errs, fmt.Errorf("client.reconnect_delay_max (%s) must be >= client.reconnect_delay (%s)",
			c.Client.ReconnectDelayMax, c.Client.ReconnectDelay))
	}
	if c.Client.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("client.handshake_timeout must be > 0, got %s", c.Client.HandshakeTimeout))
	}
	if c.Client.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("client.request_timeout must be > 0, got %s", c.Client.RequestTimeout))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %v", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"json\" or \"console\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
