package config

import (
	"fmt"

	gometrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/soquetic/soquetic-go/pkg/soquetic"
)

// NewLogger строит zap-логгер по секции log. Пишет в stderr, stdout
// остаётся под вывод команд.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// ClientOptions переводит конфиг в опции soquetic.Client.
func (c *Config) ClientOptions(log *zap.Logger, reg gometrics.Registry) soquetic.Options {
	return soquetic.Options{
		Path:              c.Server.Path,
		Namespace:         c.Server.Namespace,
		DisableReconnect:  !c.Client.Reconnect,
		ReconnectDelay:    c.Client.ReconnectDelay,
		ReconnectDelayMax: c.Client.ReconnectDelayMax,
		HandshakeTimeout:  c.Client.HandshakeTimeout,
		Logger:            log,
		Metrics:           reg,
	}
}
