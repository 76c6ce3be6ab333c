package sio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Типы пакетов Engine.IO v4 (первый символ текстового фрейма).
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// PacketType задаёт тип пакета Socket.IO v5 (идёт сразу после EngineMessage).
type PacketType int

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketDisconnect:
		return "DISCONNECT"
	case PacketEvent:
		return "EVENT"
	case PacketAck:
		return "ACK"
	case PacketConnectError:
		return "CONNECT_ERROR"
	case PacketBinaryEvent:
		return "BINARY_EVENT"
	case PacketBinaryAck:
		return "BINARY_ACK"
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

const defaultNamespace = "/"

var errEmptyPacket = errors.New("sio: empty packet")

// Packet хранит разобранный пакет Socket.IO.
//
//	<type>[<attachments>-][<namespace>,][<id>][<json>]
type Packet struct {
	Type        PacketType
	Namespace   string
	ID          uint64
	HasID       bool
	Attachments int
	Data        json.RawMessage
}

// Frame кодирует пакет в текстовый фрейм вместе с префиксом EngineMessage.
func (p Packet) Frame() string {
	var b strings.Builder
	b.WriteByte(EngineMessage)
	b.WriteString(strconv.Itoa(int(p.Type)))
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		b.WriteString(strconv.Itoa(p.Attachments))
		b.WriteByte('-')
	}
	if p.Namespace != "" && p.Namespace != defaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.HasID {
		b.WriteString(strconv.FormatUint(p.ID, 10))
	}
	b.Write(p.Data)
	return b.String()
}

// ParsePacket разбирает пакет Socket.IO (без префикса EngineMessage).
func ParsePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, errEmptyPacket
	}
	var p Packet
	t := int(s[0]) - '0'
	if t < int(PacketConnect) || t > int(PacketBinaryAck) {
		return Packet{}, fmt.Errorf("sio: unknown packet type %q", s[0])
	}
	p.Type = PacketType(t)
	i := 1

	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		dash := strings.IndexByte(s[i:], '-')
		if dash < 0 {
			return Packet{}, fmt.Errorf("sio: malformed attachments in %q", s)
		}
		n, err := strconv.Atoi(s[i : i+dash])
		if err != nil {
			return Packet{}, fmt.Errorf("sio: malformed attachments in %q: %w", s, err)
		}
		p.Attachments = n
		i += dash + 1
	}

	p.Namespace = defaultNamespace
	if i < len(s) && s[i] == '/' {
		comma := strings.IndexByte(s[i:], ',')
		if comma < 0 {
			p.Namespace = s[i:]
			i = len(s)
		} else {
			p.Namespace = s[i : i+comma]
			i += comma + 1
		}
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.ParseUint(s[start:i], 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("sio: malformed ack id in %q: %w", s, err)
		}
		p.ID = id
		p.HasID = true
	}

	if i < len(s) {
		p.Data = json.RawMessage(s[i:])
	}
	return p, nil
}

// EventData собирает JSON-массив [event, args...] для пакета EVENT.
func EventData(event string, args ...any) (json.RawMessage, error) {
	return json.Marshal(append([]any{event}, args...))
}

// SplitEvent разбирает данные пакета EVENT на имя события и аргументы.
func SplitEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("sio: malformed event payload: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, errors.New("sio: event payload without name")
	}
	var name string
	if err := json.Unmarshal(raw[0], &name); err != nil {
		return "", nil, fmt.Errorf("sio: event name is not a string: %w", err)
	}
	return name, raw[1:], nil
}

// SplitArgs разбирает данные пакета ACK (JSON-массив аргументов).
func SplitArgs(data json.RawMessage) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("sio: malformed ack payload: %w", err)
	}
	return args, nil
}

// Handshake описывает содержимое пакета EngineOpen.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}
