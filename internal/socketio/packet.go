package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types, sent as the first byte of every websocket text frame.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// PacketType is a Socket.IO v5 packet type carried inside an Engine.IO message.
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

var (
	ErrEmptyPacket       = errors.New("empty packet")
	ErrUnknownPacket     = errors.New("unknown packet type")
	ErrBinaryUnsupported = errors.New("binary packets are not supported")
	ErrNotEvent          = errors.New("packet is not an event")
)

// DefaultNamespace is the main Socket.IO namespace.
const DefaultNamespace = "/"

// Handshake is the payload of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"` // milliseconds
	PingTimeout  int      `json:"pingTimeout"`  // milliseconds
	MaxPayload   int      `json:"maxPayload"`
}

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        int // ack id, -1 when absent
	Data      json.RawMessage
}

// Encode renders the packet without the Engine.IO message prefix.
func (p Packet) Encode() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(p.Type)))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID >= 0 {
		b.WriteString(strconv.Itoa(p.ID))
	}
	b.Write(p.Data)
	return b.String()
}

// Frame renders the packet as a complete Engine.IO message frame.
func (p Packet) Frame() string {
	return string(EngineMessage) + p.Encode()
}

// Event splits an EVENT packet into its name and arguments.
func (p Packet) Event() (string, []json.RawMessage, error) {
	if p.Type != PacketEvent {
		return "", nil, ErrNotEvent
	}
	var items []json.RawMessage
	if err := json.Unmarshal(p.Data, &items); err != nil {
		return "", nil, fmt.Errorf("decode event payload: %w", err)
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("decode event payload: missing event name")
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, items[1:], nil
}

// ParsePacket decodes a Socket.IO packet (the part after the Engine.IO '4').
// Grammar: <type>[/<namespace>,][<ack id>][<json>]
func ParsePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, ErrEmptyPacket
	}
	if s[0] < '0' || s[0] > '6' {
		return Packet{}, fmt.Errorf("%w: %q", ErrUnknownPacket, s[0])
	}
	p := Packet{Type: PacketType(s[0] - '0'), Namespace: DefaultNamespace, ID: -1}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, ErrBinaryUnsupported
	}

	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:end]
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return Packet{}, fmt.Errorf("parse ack id: %w", err)
		}
		p.ID = id
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return Packet{}, fmt.Errorf("packet payload is not valid JSON")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// EncodeEvent builds an EVENT packet for the given namespace. Arguments are
// marshalled with encoding/json; pass json.RawMessage to send pre-encoded values.
func EncodeEvent(namespace, event string, args ...any) (Packet, error) {
	items := make([]any, 0, len(args)+1)
	items = append(items, event)
	items = append(items, args...)
	data, err := json.Marshal(items)
	if err != nil {
		return Packet{}, fmt.Errorf("encode event %q: %w", event, err)
	}
	return Packet{Type: PacketEvent, Namespace: namespace, ID: -1, Data: data}, nil
}

// ConnectPacket builds the CONNECT packet, with an optional auth object.
func ConnectPacket(namespace string, auth map[string]any) (Packet, error) {
	p := Packet{Type: PacketConnect, Namespace: namespace, ID: -1}
	if len(auth) > 0 {
		data, err := json.Marshal(auth)
		if err != nil {
			return Packet{}, fmt.Errorf("encode connect auth: %w", err)
		}
		p.Data = data
	}
	return p, nil
}

// ConnectErrorMessage extracts the message of a CONNECT_ERROR payload.
func ConnectErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil && text != "" {
		return text
	}
	return "connection refused"
}

// OpenFrame renders the Engine.IO open packet a server sends first.
func OpenFrame(hs Handshake) (string, error) {
	if hs.Upgrades == nil {
		hs.Upgrades = []string{}
	}
	data, err := json.Marshal(hs)
	if err != nil {
		return "", fmt.Errorf("encode handshake: %w", err)
	}
	return string(EngineOpen) + string(data), nil
}

// ConnectAckPacket accepts a CONNECT and hands out the session id.
func ConnectAckPacket(namespace, sid string) Packet {
	data, _ := json.Marshal(map[string]string{"sid": sid})
	return Packet{Type: PacketConnect, Namespace: namespace, ID: -1, Data: data}
}

// ConnectErrorPacket refuses a CONNECT with a message.
func ConnectErrorPacket(namespace, message string) Packet {
	data, _ := json.Marshal(map[string]string{"message": message})
	return Packet{Type: PacketConnectError, Namespace: namespace, ID: -1, Data: data}
}

// AckPacket answers the event that carried ack id.
func AckPacket(namespace string, id int, args ...any) (Packet, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return Packet{}, fmt.Errorf("encode ack: %w", err)
	}
	return Packet{Type: PacketAck, Namespace: namespace, ID: id, Data: data}, nil
}
