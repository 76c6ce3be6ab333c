package sio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errServerDisconnect = errors.New("server disconnect")
	errTransportClose   = errors.New("transport close")
)

// run держит соединение: подключение, readLoop, реконнект с backoff.
// StateConnecting первой попытки уже опубликовал Connect.
func (c *Client) run(ctx context.Context) {
	backoff := c.cfg.ReconnectDelay

	for {
		conn, hs, err := c.dialAndSetup(ctx)
		if err != nil {
			if !c.transition(ctx, StateChange{
				State: StateDisconnected,
				Err:   fmt.Errorf("%w: %v", ErrConnectionFailed, err),
				Final: !c.cfg.Reconnect,
			}) {
				return
			}
		} else {
			backoff = c.cfg.ReconnectDelay
			if !c.attachConn(ctx, conn) {
				_ = closeQuietly(conn)
				return
			}
			if !c.setStateIf(ctx, StateChange{State: StateConnected}) {
				c.dropConn(conn)
				return
			}
			c.log.Info("connected", zap.String("engine_sid", hs.SID))

			reason := c.readLoop(conn, hs)

			// закрываем и фейлим ожидающие; после Close это уже сделал Close
			c.dropConn(conn)
			c.failPendingAcksIf(ctx, ErrConnectionLost)

			if !c.transition(ctx, StateChange{
				State: StateDisconnected,
				Err:   fmt.Errorf("%w: %v", ErrConnectionLost, reason),
				Final: !c.cfg.Reconnect || errors.Is(reason, errServerDisconnect),
			}) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		c.metrics.incr(metricReconnects, 1)
		if backoff < c.cfg.ReconnectDelayMax {
			backoff = min(backoff*2, c.cfg.ReconnectDelayMax)
		}
		if !c.setStateIf(ctx, StateChange{State: StateConnecting}) {
			return
		}
	}
}

// transition публикует переход живого запуска. Для Final запуск
// снимается под тем же lmu: Connect, вызванный сразу после того, как
// подписчик увидел Final, должен стартовать новую сессию.
// Возвращает false, если run пора завершаться.
func (c *Client) transition(ctx context.Context, sc StateChange) bool {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.setState(sc)
	if !sc.Final {
		return true
	}
	if c.runCtx == ctx && c.cancel != nil {
		c.cancel()
		c.runCtx, c.cancel = nil, nil
	}
	return false
}

// readLoop читает фреймы до ошибки и возвращает причину разрыва.
func (c *Client) readLoop(conn *websocket.Conn, hs Handshake) error {
	wait := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	for {
		if wait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(wait))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.metrics.incr(metricRecv, 1)
		if err := c.handleFrame(data); err != nil {
			return err
		}
	}
}

func (c *Client) handleFrame(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case EnginePing:
		return c.write(string(EnginePong) + string(data[1:]))
	case EngineClose:
		return errTransportClose
	case EngineMessage:
	default:
		return nil
	}

	p, err := ParsePacket(string(data[1:]))
	if err != nil {
		c.reportError(err)
		return nil
	}
	if p.Namespace != c.cfg.Namespace {
		return nil
	}

	switch p.Type {
	case PacketEvent:
		c.dispatchEvent(p)
	case PacketAck:
		c.dispatchAck(p)
	case PacketDisconnect:
		return errServerDisconnect
	case PacketBinaryEvent, PacketBinaryAck:
		c.reportError(fmt.Errorf("sio: %s packets are not supported", p.Type))
	}
	return nil
}

func (c *Client) dispatchEvent(p Packet) {
	name, args, err := SplitEvent(p.Data)
	if err != nil {
		c.reportError(err)
		return
	}
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[name]...)
	c.mu.Unlock()

	c.metrics.incr(metricBroadcasts, 1)
	if len(hs) == 0 {
		c.log.Debug("event without handlers", zap.String("event", name))
		return
	}
	for _, h := range hs {
		h(args)
	}
}

func (c *Client) dispatchAck(p Packet) {
	if !p.HasID {
		c.reportError(errors.New("sio: ack without id"))
		return
	}
	ack := c.takeAck(p.ID)
	if ack == nil {
		c.log.Debug("ack for unknown id", zap.Uint64("id", p.ID))
		return
	}
	c.metrics.decr(metricPending, 1)

	args, err := SplitArgs(p.Data)
	if err != nil {
		ack(nil, err)
		return
	}
	ack(args, nil)
}

// failPendingAcks завершает все ожидающие ack ошибкой при разрыве/закрытии.
func (c *Client) failPendingAcks(err error) {
	c.completeAcks(c.takeAcks(), err)
}

// failPendingAcksIf трогает ack только пока запуск ctx жив, чтобы старая
// сессия не завершила ack новой.
func (c *Client) failPendingAcksIf(ctx context.Context, err error) {
	c.lmu.Lock()
	if ctx.Err() != nil {
		c.lmu.Unlock()
		return
	}
	pending := c.takeAcks()
	c.lmu.Unlock()
	c.completeAcks(pending, err)
}

func (c *Client) takeAcks() map[uint64]AckFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.acks
	c.acks = make(map[uint64]AckFunc)
	return pending
}

func (c *Client) completeAcks(pending map[uint64]AckFunc, err error) {
	if len(pending) == 0 {
		return
	}
	c.metrics.decr(metricPending, int64(len(pending)))
	for _, ack := range pending {
		ack(nil, err)
	}
}
