package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soquetic/soquetic-go/internal/config"
	"github.com/soquetic/soquetic-go/pkg/soquetic"
)

// session держит подключённый клиент и всё, что нужно закрыть после команды.
type session struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics gometrics.Registry
	client  *soquetic.Client
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Server.URL = serverURL
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
		if !flags.Changed("url") {
			cfg.Server.URL = ""
		}
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, metrics: gometrics.NewRegistry()}
	opts := cfg.ClientOptions(log, s.metrics)
	opts.OnError = func(err error) { printError(os.Stderr, err) }
	s.client = soquetic.New(opts)

	if err := s.client.ConnectURL(cfg.Endpoint()); err != nil {
		s.close()
		return nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.HandshakeTimeout)
	defer cancel()
	if err := s.client.WaitConnected(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Endpoint(), err)
	}
	log.Debug("connected", zap.String("url", cfg.Endpoint()))
	return s, nil
}

func (s *session) close() {
	_ = s.client.Close()
	if dumpMetrics {
		gometrics.WriteJSONOnce(s.metrics, os.Stderr)
	}
	_ = s.log.Sync()
}

// requestContext ограничивает блокирующий запрос client.request_timeout.
func (s *session) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), s.cfg.Client.RequestTimeout)
}

func printData(w io.Writer, d soquetic.Data) {
	var buf []byte
	if out, err := json.MarshalIndent(json.RawMessage(d.String()), "", "  "); err == nil {
		buf = out
	} else {
		buf = []byte(d.String())
	}
	fmt.Fprintln(w, string(buf))
}

func printError(w io.Writer, err error) {
	var remote *soquetic.RemoteError
	if errors.As(err, &remote) {
		color.New(color.FgRed).Fprintf(w, "%s: status %d: %s\n", remote.Event, remote.Status, remote.Message)
		return
	}
	color.New(color.FgRed).Fprintln(w, err)
}
