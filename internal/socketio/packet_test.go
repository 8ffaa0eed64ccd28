package socketio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Packet
	}{
		{"connect", "0", Packet{Type: PacketConnect, Namespace: "/", ID: -1}},
		{"connect with sid", `0{"sid":"abc"}`, Packet{Type: PacketConnect, Namespace: "/", ID: -1, Data: json.RawMessage(`{"sid":"abc"}`)}},
		{"namespace only", "0/admin", Packet{Type: PacketConnect, Namespace: "/admin", ID: -1}},
		{"disconnect", "1", Packet{Type: PacketDisconnect, Namespace: "/", ID: -1}},
		{"event", `2["newFrameFromServer",[]]`, Packet{Type: PacketEvent, Namespace: "/", ID: -1, Data: json.RawMessage(`["newFrameFromServer",[]]`)}},
		{"event with namespace", `2/admin,["a"]`, Packet{Type: PacketEvent, Namespace: "/admin", ID: -1, Data: json.RawMessage(`["a"]`)}},
		{"event with ack id", `212["a"]`, Packet{Type: PacketEvent, Namespace: "/", ID: 12, Data: json.RawMessage(`["a"]`)}},
		{"ack", `3/admin,5[1]`, Packet{Type: PacketAck, Namespace: "/admin", ID: 5, Data: json.RawMessage(`[1]`)}},
		{"connect error", `4{"message":"no"}`, Packet{Type: PacketConnectError, Namespace: "/", ID: -1, Data: json.RawMessage(`{"message":"no"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePacket(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePacket_Errors(t *testing.T) {
	_, err := ParsePacket("")
	assert.ErrorIs(t, err, ErrEmptyPacket)

	_, err = ParsePacket("9")
	assert.ErrorIs(t, err, ErrUnknownPacket)

	_, err = ParsePacket(`51-["a",{"_placeholder":true,"num":0}]`)
	assert.ErrorIs(t, err, ErrBinaryUnsupported)

	_, err = ParsePacket(`2["unterminated`)
	assert.Error(t, err)
}

func TestPacket_Encode(t *testing.T) {
	p := Packet{Type: PacketEvent, Namespace: "/admin", ID: 3, Data: json.RawMessage(`["x"]`)}
	assert.Equal(t, `2/admin,3["x"]`, p.Encode())
	assert.Equal(t, `42/admin,3["x"]`, p.Frame())

	parsed, err := ParsePacket(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestEncodeEvent(t *testing.T) {
	p, err := EncodeEvent(DefaultNamespace, "clientStrokeToServer", "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, `42["clientStrokeToServer","line one\nline two"]`, p.Frame())

	name, args, err := p.Event()
	require.NoError(t, err)
	assert.Equal(t, "clientStrokeToServer", name)
	require.Len(t, args, 1)

	var text string
	require.NoError(t, json.Unmarshal(args[0], &text))
	assert.Equal(t, "line one\nline two", text)
}

func TestEncodeEvent_RawArgument(t *testing.T) {
	p, err := EncodeEvent(DefaultNamespace, "newFrameFromServer", json.RawMessage(`[{"index":1}]`))
	require.NoError(t, err)
	assert.Equal(t, `2["newFrameFromServer",[{"index":1}]]`, p.Encode())
}

func TestPacket_EventErrors(t *testing.T) {
	_, _, err := Packet{Type: PacketAck, Data: json.RawMessage(`[]`)}.Event()
	assert.ErrorIs(t, err, ErrNotEvent)

	_, _, err = Packet{Type: PacketEvent, Data: json.RawMessage(`[]`)}.Event()
	assert.Error(t, err)

	_, _, err = Packet{Type: PacketEvent, Data: json.RawMessage(`[1]`)}.Event()
	assert.Error(t, err)
}

func TestConnectPacket(t *testing.T) {
	p, err := ConnectPacket(DefaultNamespace, nil)
	require.NoError(t, err)
	assert.Equal(t, "40", p.Frame())

	p, err = ConnectPacket("/draw", map[string]any{"token": "abc"})
	require.NoError(t, err)
	assert.Equal(t, `40/draw,{"token":"abc"}`, p.Frame())
}

func TestConnectErrorMessage(t *testing.T) {
	assert.Equal(t, "unauthorized", ConnectErrorMessage(json.RawMessage(`{"message":"unauthorized"}`)))
	assert.Equal(t, "nope", ConnectErrorMessage(json.RawMessage(`"nope"`)))
	assert.Equal(t, "connection refused", ConnectErrorMessage(nil))
}

func TestServerPackets(t *testing.T) {
	open, err := OpenFrame(Handshake{SID: "abc", PingInterval: 25000, PingTimeout: 20000, MaxPayload: 1000000})
	require.NoError(t, err)
	assert.Equal(t, `0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, open)

	assert.Equal(t, `40{"sid":"s1"}`, ConnectAckPacket("/", "s1").Frame())
	assert.Equal(t, `44/admin,{"message":"bad token"}`, ConnectErrorPacket("/admin", "bad token").Frame())

	ack, err := AckPacket("/", 7, "stored")
	require.NoError(t, err)
	assert.Equal(t, `437["stored"]`, ack.Frame())

	empty, err := AckPacket("/", 0)
	require.NoError(t, err)
	assert.Equal(t, `430[]`, empty.Frame())

	refused, err := ParsePacket(ConnectErrorPacket("/", "bad token").Encode())
	require.NoError(t, err)
	assert.Equal(t, "bad token", ConnectErrorMessage(refused.Data))
}
