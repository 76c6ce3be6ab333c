package soquetic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/soquetic/soquetic-go/internal/sio"
)

const DefaultPort = 3000

type (
	State       = sio.State
	StateChange = sio.StateChange
)

const (
	StateIdle         = sio.StateIdle
	StateConnecting   = sio.StateConnecting
	StateConnected    = sio.StateConnected
	StateDisconnected = sio.StateDisconnected
)

// Transport описывает всё, что фасад использует от соединения.
type Transport interface {
	Connect(rawURL string)
	On(event string, h func(args []json.RawMessage))
	Emit(event string, payload any, ack func(args []json.RawMessage, err error)) error
	Connected() bool
	State() State
	Watch() (<-chan StateChange, func())
	Close() error
}

var _ Transport = (*sio.Client)(nil)

type Options struct {
	Path      string // по умолчанию "/socket.io/"
	Namespace string // по умолчанию "/"
	Auth      any
	Header    http.Header

	DisableReconnect  bool
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	HandshakeTimeout  time.Duration

	Logger  *zap.Logger
	Metrics gometrics.Registry

	// OnError получает асинхронные ошибки GetEvent/PostEvent (RemoteError,
	// разрыв до ответа). По умолчанию они пишутся в лог.
	OnError func(error)
}

type Client struct {
	id        string
	transport Transport
	log       *zap.Logger
	onError   func(error)
}

// New создаёт клиента поверх socket.io транспорта. Соединение не
// открывается до вызова Connect.
func New(opts Options) *Client {
	cfg := sio.DefaultConfig()
	if opts.Path != "" {
		cfg.Path = opts.Path
	}
	if opts.Namespace != "" {
		cfg.Namespace = opts.Namespace
	}
	cfg.Auth = opts.Auth
	cfg.Header = opts.Header
	cfg.Reconnect = !opts.DisableReconnect
	if opts.ReconnectDelay > 0 {
		cfg.ReconnectDelay = opts.ReconnectDelay
	}
	if opts.ReconnectDelayMax > 0 {
		cfg.ReconnectDelayMax = opts.ReconnectDelayMax
	}
	if opts.HandshakeTimeout > 0 {
		cfg.HandshakeTimeout = opts.HandshakeTimeout
	}
	cfg.Logger = opts.Logger
	cfg.Metrics = opts.Metrics

	t := sio.New(cfg)
	c := NewWithTransport(t, opts)
	t.OnError = func(err error) {
		c.log.Warn("transport error", zap.Error(err))
	}
	return c
}

// NewWithTransport создаёт клиента поверх готового транспорта.
func NewWithTransport(t Transport, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Client{
		id:        id,
		transport: t,
		log:       logger.Named("soquetic").With(zap.String("client", id)),
		onError:   opts.OnError,
	}
}

// ID возвращает идентификатор экземпляра клиента (в логах поле "client").
func (c *Client) ID() string {
	return c.id
}

// Connect подключается к http://localhost:<port>; port <= 0 означает DefaultPort.
// Возвращается сразу, подключение идёт в фоне (см. States и WaitConnected).
func (c *Client) Connect(port int) error {
	if port <= 0 {
		port = DefaultPort
	}
	if port > 65535 {
		return invalidArgument("port %d out of range", port)
	}
	return c.ConnectURL(fmt.Sprintf("http://localhost:%d", port))
}

// ConnectURL подключается к произвольному http(s):// или ws(s):// адресу.
func (c *Client) ConnectURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return invalidArgument("url %q: %v", rawURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return invalidArgument("url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if u.Host == "" {
		return invalidArgument("url %q: missing host", rawURL)
	}
	c.log.Info("connecting", zap.String("url", rawURL))
	c.transport.Connect(rawURL)
	return nil
}

// WaitConnected ждёт состояния connected. Возвращает ошибку, если
// подключение окончательно не удалось или ctx истёк раньше.
func (c *Client) WaitConnected(ctx context.Context) error {
	states, stop := c.transport.Watch()
	defer stop()
	if c.transport.Connected() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sc, ok := <-states:
			if !ok {
				return ErrNotConnected
			}
			if sc.State == StateConnected {
				return nil
			}
			if sc.Final {
				if sc.Err != nil {
					return sc.Err
				}
				return ErrNotConnected
			}
		}
	}
}

func (c *Client) Connected() bool {
	return c.transport.Connected()
}

func (c *Client) State() State {
	return c.transport.State()
}

// States подписывает на смену состояний соединения. Ошибки подключения
// и разрывы приходят сюда (StateChange.Err), а не паникой.
func (c *Client) States() (<-chan StateChange, func()) {
	return c.transport.Watch()
}

// Close отключается и останавливает реконнект.
func (c *Client) Close() error {
	return c.transport.Close()
}

// SubscribeRealTimeEvent вызывает callback на каждое событие сервера RT:<event>.
// Повторная подписка на то же событие добавляет ещё один callback.
func (c *Client) SubscribeRealTimeEvent(event string, callback func(Data)) error {
	if !c.transport.Connected() {
		return ErrNotConnected
	}
	if event == "" {
		return invalidArgument("event name must not be empty")
	}
	if callback == nil {
		return invalidArgument("callback must not be nil")
	}
	c.transport.On(realTimePrefix+event, func(args []json.RawMessage) {
		callback(firstArg(args))
	})
	c.log.Debug("subscribed", zap.String("event", realTimePrefix+event))
	return nil
}

// GetEvent отправляет GET:<type> с {query} и вызывает callback с data ответа.
func (c *Client) GetEvent(path string, callback func(Data)) error {
	tag, payload, err := c.prepare(getPrefix, path, nil)
	if err != nil {
		return err
	}
	if callback == nil {
		return invalidArgument("callback must not be nil")
	}
	return c.emit(tag, payload, c.decorate(tag, callback))
}

// PostEvent отправляет POST:<type> с {data, query}; callback может быть nil.
func (c *Client) PostEvent(path string, data any, callback func(Data)) error {
	tag, payload, err := c.prepare(postPrefix, path, data)
	if err != nil {
		return err
	}
	if callback == nil {
		callback = func(Data) {}
	}
	return c.emit(tag, payload, c.decorate(tag, callback))
}

// Get работает как GetEvent, но ждёт ответа.
//
// Callback'и подписок и GetEvent/PostEvent выполняются в горутине чтения
// соединения. Get, вызванный из такого callback'а, не дождётся ответа,
// пока эта горутина занята, и вернёт ошибку ctx по его истечении.
func (c *Client) Get(ctx context.Context, path string) (Data, error) {
	return c.request(ctx, getPrefix, path, nil)
}

// Post работает как PostEvent, но ждёт ответа. Как и Get, его нельзя
// вызывать из callback'ов клиента: ответ читает та же горутина.
func (c *Client) Post(ctx context.Context, path string, data any) (Data, error) {
	return c.request(ctx, postPrefix, path, data)
}

func (c *Client) request(ctx context.Context, method, path string, data any) (Data, error) {
	tag, payload, err := c.prepare(method, path, data)
	if err != nil {
		return nil, err
	}
	type result struct {
		data Data
		err  error
	}
	done := make(chan result, 1)
	err = c.emit(tag, payload, func(args []json.RawMessage, err error) {
		d, err := unwrap(tag, args, err)
		done <- result{d, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// prepare проверяет соединение и путь и собирает тег и payload запроса.
// Payload свой на каждый вызов.
func (c *Client) prepare(method, path string, data any) (string, Request, error) {
	if !c.transport.Connected() {
		return "", Request{}, ErrNotConnected
	}
	ev := ParseEvent(path)
	if ev.Type == "" {
		return "", Request{}, invalidArgument("event path %q has no event name", path)
	}
	payload := Request{Query: ev.Query}
	if method == postPrefix {
		payload.Data = data
	}
	return method + ev.Type, payload, nil
}

func (c *Client) emit(tag string, payload Request, ack func([]json.RawMessage, error)) error {
	err := c.transport.Emit(tag, payload, ack)
	switch {
	case err == nil:
		c.log.Debug("emit", zap.String("event", tag))
		return nil
	case errors.Is(err, sio.ErrNotConnected):
		return ErrNotConnected
	default:
		return fmt.Errorf("%s: %w", tag, err)
	}
}

// decorate вызывает callback только с data успешного ответа; остальное
// уходит в обработчик ошибок.
func (c *Client) decorate(tag string, callback func(Data)) func([]json.RawMessage, error) {
	return func(args []json.RawMessage, err error) {
		data, err := unwrap(tag, args, err)
		if err != nil {
			c.fail(err)
			return
		}
		callback(data)
	}
}

func (c *Client) fail(err error) {
	if c.onError != nil {
		c.onError(err)
		return
	}
	c.log.Error("request failed", zap.Error(err))
}
