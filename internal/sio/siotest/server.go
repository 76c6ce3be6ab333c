// Package siotest provides an in-process Socket.IO server for tests.
// It speaks the websocket-only subset of Engine.IO v4 that package sio
// implements: handshake, ping/pong, namespace CONNECT, events and acks.
package siotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/soquetic/soquetic-go/internal/sio"
)

// HandlerFunc answers an event; the returned values become the ack arguments.
type HandlerFunc func(args []json.RawMessage) []any

// Event is an event received from a client.
type Event struct {
	Name  string
	Args  []json.RawMessage
	ID    uint64
	HasID bool
}

type Server struct {
	*httptest.Server

	// PingInterval and PingTimeout are announced in the open packet, in ms.
	PingInterval int
	PingTimeout  int

	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	peers    map[*peer]struct{}
	events   []Event
	reject   string
	auth     []json.RawMessage

	sessions atomic.Int64
	pongs    atomic.Int64
}

type peer struct {
	ws  *websocket.Conn
	wmu sync.Mutex
}

func (p *peer) send(frame string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

func NewServer() *Server {
	s := &Server{
		PingInterval: 25000,
		PingTimeout:  20000,
		handlers:     make(map[string]HandlerFunc),
		peers:        make(map[*peer]struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	u, err := url.Parse(s.URL)
	if err != nil {
		panic(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		panic(err)
	}
	return port
}

// Handle registers fn for event. Events with an ack id and no handler are
// left unanswered.
func (s *Server) Handle(event string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = fn
}

// Reject makes subsequent namespace CONNECT attempts fail with msg.
func (s *Server) Reject(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = msg
}

// Events returns a copy of every event received so far.
func (s *Server) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Auth returns the CONNECT payloads received so far.
func (s *Server) Auth() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.auth...)
}

// Clients returns the number of clients connected to the namespace.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Sessions counts successful namespace connects since start.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// Pongs counts pong packets received from clients.
func (s *Server) Pongs() int {
	return int(s.pongs.Load())
}

// Broadcast emits event to every connected client.
func (s *Server) Broadcast(event string, args ...any) error {
	data, err := sio.EventData(event, args...)
	if err != nil {
		return err
	}
	frame := sio.Packet{Type: sio.PacketEvent, Data: data}.Frame()
	for _, p := range s.snapshot() {
		if err := p.send(frame); err != nil {
			return err
		}
	}
	return nil
}

// Ping sends an Engine.IO ping to every connected client.
func (s *Server) Ping() {
	for _, p := range s.snapshot() {
		_ = p.send(string(sio.EnginePing))
	}
}

// Drop closes every transport without a goodbye, like a crashed server.
func (s *Server) Drop() {
	for _, p := range s.snapshot() {
		s.remove(p)
		_ = p.ws.Close()
	}
}

// Kick sends a namespace DISCONNECT to every client.
func (s *Server) Kick() {
	frame := sio.Packet{Type: sio.PacketDisconnect}.Frame()
	for _, p := range s.snapshot() {
		_ = p.send(frame)
		s.remove(p)
	}
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		ps = append(ps, p)
	}
	return ps
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" ||
		r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unexpected transport request", http.StatusBadRequest)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{ws: ws}
	defer func() {
		s.remove(p)
		_ = ws.Close()
	}()

	open, _ := json.Marshal(sio.Handshake{
		SID:          fmt.Sprintf("eio-%d", s.sessions.Load()+1),
		Upgrades:     []string{},
		PingInterval: s.PingInterval,
		PingTimeout:  s.PingTimeout,
		MaxPayload:   1000000,
	})
	if err := p.send(string(sio.EngineOpen) + string(open)); err != nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case sio.EnginePong:
			s.pongs.Add(1)
			continue
		case sio.EngineClose:
			return
		case sio.EngineMessage:
		default:
			continue
		}
		pkt, err := sio.ParsePacket(string(data[1:]))
		if err != nil {
			return
		}
		if !s.handlePacket(p, pkt) {
			return
		}
	}
}

func (s *Server) handlePacket(p *peer, pkt sio.Packet) bool {
	switch pkt.Type {
	case sio.PacketConnect:
		s.mu.Lock()
		reject := s.reject
		s.auth = append(s.auth, pkt.Data)
		s.mu.Unlock()
		if reject != "" {
			msg, _ := json.Marshal(map[string]string{"message": reject})
			_ = p.send(sio.Packet{Type: sio.PacketConnectError, Namespace: pkt.Namespace, Data: msg}.Frame())
			return false
		}
		n := s.sessions.Add(1)
		sid, _ := json.Marshal(map[string]string{"sid": fmt.Sprintf("sock-%d", n)})
		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()
		return p.send(sio.Packet{Type: sio.PacketConnect, Namespace: pkt.Namespace, Data: sid}.Frame()) == nil

	case sio.PacketDisconnect:
		return false

	case sio.PacketEvent:
		name, args, err := sio.SplitEvent(pkt.Data)
		if err != nil {
			return false
		}
		s.mu.Lock()
		s.events = append(s.events, Event{Name: name, Args: args, ID: pkt.ID, HasID: pkt.HasID})
		fn := s.handlers[name]
		s.mu.Unlock()
		if fn == nil || !pkt.HasID {
			if fn != nil {
				fn(args)
			}
			return true
		}
		reply := fn(args)
		if reply == nil {
			reply = []any{}
		}
		data, err := json.Marshal(reply)
		if err != nil {
			return false
		}
		ack := sio.Packet{Type: sio.PacketAck, Namespace: pkt.Namespace, ID: pkt.ID, HasID: true, Data: data}
		return p.send(ack.Frame()) == nil
	}
	return true
}
