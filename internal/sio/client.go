package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gometrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionFailed = errors.New("connection failed")
	ErrConnectionLost   = errors.New("connection lost")
	ErrClosed           = errors.New("client closed")
)

// Handler вызывается на каждое входящее событие; args без имени события.
type Handler = func(args []json.RawMessage)

// AckFunc вызывается ровно один раз: с аргументами ACK либо с ошибкой,
// если соединение оборвалось раньше, чем пришёл ответ.
type AckFunc = func(args []json.RawMessage, err error)

type Config struct {
	Path      string // по умолчанию "/socket.io/"
	Namespace string // по умолчанию "/"
	Auth      any    // payload пакета CONNECT
	Header    http.Header

	Reconnect         bool
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration

	Logger  *zap.Logger
	Metrics gometrics.Registry
}

// DefaultConfig совпадает с настройками по умолчанию клиента socket.io.
func DefaultConfig() Config {
	return Config{
		Path:              "/socket.io/",
		Namespace:         defaultNamespace,
		Reconnect:         true,
		ReconnectDelay:    time.Second,
		ReconnectDelayMax: 30 * time.Second,
		HandshakeTimeout:  20 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

type Client struct {
	cfg     Config
	log     *zap.Logger
	metrics metrics

	lmu    sync.Mutex // url, runCtx, cancel
	url    string
	runCtx context.Context
	cancel context.CancelFunc

	wmu  sync.Mutex // сериализует запись в websocket
	conn *websocket.Conn

	mu       sync.Mutex // handlers, acks
	handlers map[string][]Handler
	acks     map[uint64]AckFunc
	seq      atomic.Uint64

	state    atomic.Int32
	watchers watchers

	// OnError получает ошибки протокола, не связанные с конкретным запросом.
	OnError func(error)
}

func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.ReconnectDelayMax < cfg.ReconnectDelay {
		cfg.ReconnectDelayMax = max(def.ReconnectDelayMax, cfg.ReconnectDelay)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = gometrics.NewRegistry()
	}
	return &Client{
		cfg:      cfg,
		log:      cfg.Logger.Named("sio"),
		metrics:  metrics{reg: cfg.Metrics},
		handlers: make(map[string][]Handler),
		acks:     make(map[uint64]AckFunc),
	}
}

// Connect запоминает адрес и запускает подключение в фоне.
// Если клиент уже подключается или подключён, меняется только адрес
// для следующих реконнектов.
func (c *Client) Connect(rawURL string) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.url = rawURL
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx, c.cancel = ctx, cancel
	// новая сессия видна подписчикам сразу, до старта горутины:
	// иначе Watch отдаст итог прошлой сессии
	c.setState(StateChange{State: StateConnecting})
	go c.run(ctx)
}

// Close отключается от сервера и останавливает реконнект.
func (c *Client) Close() error {
	c.lmu.Lock()
	cancel := c.cancel
	c.runCtx, c.cancel = nil, nil
	if cancel != nil {
		cancel()
	}
	c.lmu.Unlock()
	if cancel == nil {
		return nil
	}
	err := c.closeConn(true)
	c.failPendingAcks(ErrClosed)
	c.setState(StateChange{State: StateDisconnected, Final: true})
	return err
}

func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Watch подписывает на смену состояний. Если переходы уже были, первым
// в канал придёт последний из них. Второе значение отписывает и
// закрывает канал.
func (c *Client) Watch() (<-chan StateChange, func()) {
	return c.watchers.subscribe(16)
}

// Metrics возвращает реестр счётчиков клиента.
func (c *Client) Metrics() gometrics.Registry {
	return c.cfg.Metrics
}

// On добавляет обработчик события. Обработчики накапливаются и вызываются
// в порядке регистрации из горутины чтения.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Emit отправляет событие с одним payload. Если ack != nil, пакет получает
// id и ack будет вызван по ответу с тем же id.
func (c *Client) Emit(event string, payload any, ack AckFunc) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	data, err := EventData(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	p := Packet{Type: PacketEvent, Namespace: c.cfg.Namespace, Data: data}

	if ack != nil {
		p.ID = c.nextSeq()
		p.HasID = true
		c.mu.Lock()
		c.acks[p.ID] = ack
		c.mu.Unlock()
		c.metrics.incr(metricPending, 1)
	}

	if werr := c.write(p.Frame()); werr != nil {
		// сеть упала между подготовкой и записью: подчищаем ack
		if ack != nil && c.takeAck(p.ID) != nil {
			c.metrics.decr(metricPending, 1)
		}
		return werr
	}
	return nil
}

func (c *Client) setState(sc StateChange) {
	prev := State(c.state.Swap(int32(sc.State)))
	if prev == sc.State && sc.Err == nil && !sc.Final {
		return
	}
	if sc.Err != nil {
		c.log.Warn("state change", zap.Stringer("state", sc.State), zap.Error(sc.Err))
	} else {
		c.log.Debug("state change", zap.Stringer("state", sc.State))
	}
	c.watchers.notify(sc)
}

// setStateIf публикует переход только для живого запуска: после Close
// горутина run не должна перетирать StateDisconnected.
func (c *Client) setStateIf(ctx context.Context, sc StateChange) bool {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.setState(sc)
	return true
}

func (c *Client) reportError(err error) {
	c.log.Debug("protocol error", zap.Error(err))
	if c.OnError != nil {
		c.OnError(err)
	}
}
