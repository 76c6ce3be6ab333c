package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ========================= low-level =========================

func (c *Client) nextSeq() uint64 {
	return c.seq.Add(1)
}

func (c *Client) takeAck(id uint64) AckFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	ack, ok := c.acks[id]
	if ok {
		delete(c.acks, id)
	}
	return ack
}

// wsURL переводит базовый адрес (http/https/ws/wss) в адрес websocket-транспорта.
func (c *Client) wsURL() (string, error) {
	c.lmu.Lock()
	raw := c.url
	c.lmu.Unlock()

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	u.Path = c.cfg.Path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialAndSetup: websocket + handshake Engine.IO + CONNECT в namespace.
func (c *Client) dialAndSetup(ctx context.Context) (*websocket.Conn, Handshake, error) {
	target, err := c.wsURL()
	if err != nil {
		return nil, Handshake{}, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.cfg.Header)
	if err != nil {
		return nil, Handshake{}, err
	}

	hs, err := c.handshake(conn)
	if err != nil {
		_ = conn.Close()
		return nil, Handshake{}, err
	}
	if hs.MaxPayload > 0 {
		conn.SetReadLimit(int64(hs.MaxPayload))
	}
	return conn, hs, nil
}

func (c *Client) handshake(conn *websocket.Conn) (Handshake, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	_ = conn.SetReadDeadline(deadline)

	_, data, err := conn.ReadMessage()
	if err != nil {
		return Handshake{}, err
	}
	if len(data) == 0 || data[0] != EngineOpen {
		return Handshake{}, fmt.Errorf("expected open packet, got %q", data)
	}
	var hs Handshake
	if err := json.Unmarshal(data[1:], &hs); err != nil {
		return Handshake{}, fmt.Errorf("malformed open packet: %w", err)
	}

	connect := Packet{Type: PacketConnect, Namespace: c.cfg.Namespace}
	if c.cfg.Auth != nil {
		auth, err := json.Marshal(c.cfg.Auth)
		if err != nil {
			return Handshake{}, fmt.Errorf("encode auth: %w", err)
		}
		connect.Data = auth
	}
	if err := c.writeTo(conn, connect.Frame()); err != nil {
		return Handshake{}, err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return Handshake{}, err
		}
		c.metrics.incr(metricRecv, 1)
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case EnginePing:
			if err := c.writeTo(conn, string(EnginePong)+string(data[1:])); err != nil {
				return Handshake{}, err
			}
			continue
		case EngineClose:
			return Handshake{}, errors.New("transport closed during handshake")
		case EngineMessage:
		default:
			continue
		}

		p, err := ParsePacket(string(data[1:]))
		if err != nil {
			return Handshake{}, err
		}
		if p.Namespace != c.cfg.Namespace {
			continue
		}
		switch p.Type {
		case PacketConnect:
			c.log.Debug("namespace connected",
				zap.String("namespace", p.Namespace), zap.String("engine_sid", hs.SID))
			return hs, nil
		case PacketConnectError:
			var cerr struct {
				Message string `json:"message"`
			}
			if len(p.Data) > 0 {
				_ = json.Unmarshal(p.Data, &cerr)
			}
			if cerr.Message == "" {
				cerr.Message = "rejected by server"
			}
			return Handshake{}, errors.New(cerr.Message)
		}
	}
}

// attachConn делает conn текущим соединением, если запуск ctx ещё жив.
func (c *Client) attachConn(ctx context.Context, conn *websocket.Conn) bool {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()
	return true
}

// write пишет текстовый фрейм в текущее соединение.
func (c *Client) write(frame string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.writeLocked(c.conn, frame)
}

func (c *Client) writeTo(conn *websocket.Conn, frame string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeLocked(conn, frame)
}

func (c *Client) writeLocked(conn *websocket.Conn, frame string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return err
	}
	c.metrics.incr(metricSent, 1)
	return nil
}

// closeConn закрывает текущее соединение. graceful: сначала DISCONNECT
// и close-фрейм, как при ручном отключении.
func (c *Client) closeConn(graceful bool) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	if graceful {
		bye := Packet{Type: PacketDisconnect, Namespace: c.cfg.Namespace}
		_ = c.writeLocked(conn, bye.Frame())
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
	}
	return closeQuietly(conn)
}

// dropConn закрывает conn своей сессии. Текущее соединение снимается,
// только если это всё ещё conn: после Close+Connect там уже новая сессия.
func (c *Client) dropConn(conn *websocket.Conn) {
	c.wmu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.wmu.Unlock()
	_ = closeQuietly(conn)
}

func closeQuietly(conn *websocket.Conn) error {
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
