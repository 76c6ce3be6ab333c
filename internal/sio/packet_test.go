package sio_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soquetic/soquetic-go/internal/sio"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want sio.Packet
	}{
		{
			name: "connect default namespace",
			in:   "0",
			want: sio.Packet{Type: sio.PacketConnect, Namespace: "/"},
		},
		{
			name: "connect reply with sid",
			in:   `0{"sid":"abc"}`,
			want: sio.Packet{Type: sio.PacketConnect, Namespace: "/", Data: json.RawMessage(`{"sid":"abc"}`)},
		},
		{
			name: "event with ack id",
			in:   `212["GET:users",{}]`,
			want: sio.Packet{Type: sio.PacketEvent, Namespace: "/", ID: 12, HasID: true, Data: json.RawMessage(`["GET:users",{}]`)},
		},
		{
			name: "ack in custom namespace",
			in:   `3/admin,7[{"status":200}]`,
			want: sio.Packet{Type: sio.PacketAck, Namespace: "/admin", ID: 7, HasID: true, Data: json.RawMessage(`[{"status":200}]`)},
		},
		{
			name: "disconnect in custom namespace without comma",
			in:   "1/admin",
			want: sio.Packet{Type: sio.PacketDisconnect, Namespace: "/admin"},
		},
		{
			name: "binary event",
			in:   `51-["upload",{"_placeholder":true,"num":0}]`,
			want: sio.Packet{Type: sio.PacketBinaryEvent, Namespace: "/", Attachments: 1, Data: json.RawMessage(`["upload",{"_placeholder":true,"num":0}]`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sio.ParsePacket(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePacketErrors(t *testing.T) {
	for _, in := range []string{"", "9", "x", "5abc"} {
		_, err := sio.ParsePacket(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestPacketFrame(t *testing.T) {
	data, err := sio.EventData("GET:users", map[string]any{"query": map[string]string{"active": "true"}})
	require.NoError(t, err)

	p := sio.Packet{Type: sio.PacketEvent, Namespace: "/", ID: 3, HasID: true, Data: data}
	assert.Equal(t, `423["GET:users",{"query":{"active":"true"}}]`, p.Frame())

	p = sio.Packet{Type: sio.PacketConnect, Namespace: "/admin", Data: json.RawMessage(`{"token":"x"}`)}
	assert.Equal(t, `40/admin,{"token":"x"}`, p.Frame())

	// Frame и ParsePacket согласованы
	back, err := sio.ParsePacket(p.Frame()[1:])
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestSplitEvent(t *testing.T) {
	name, args, err := sio.SplitEvent(json.RawMessage(`["RT:chat","hi",2]`))
	require.NoError(t, err)
	assert.Equal(t, "RT:chat", name)
	require.Len(t, args, 2)
	assert.JSONEq(t, `"hi"`, string(args[0]))
	assert.JSONEq(t, `2`, string(args[1]))

	_, _, err = sio.SplitEvent(json.RawMessage(`[]`))
	assert.Error(t, err)
	_, _, err = sio.SplitEvent(json.RawMessage(`[1]`))
	assert.Error(t, err)
	_, _, err = sio.SplitEvent(json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestSplitArgs(t *testing.T) {
	args, err := sio.SplitArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = sio.SplitArgs(json.RawMessage(`[{"status":200,"data":42}]`))
	require.NoError(t, err)
	require.Len(t, args, 1)

	_, err = sio.SplitArgs(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", sio.StateIdle.String())
	assert.Equal(t, "connecting", sio.StateConnecting.String())
	assert.Equal(t, "connected", sio.StateConnected.String())
	assert.Equal(t, "disconnected", sio.StateDisconnected.String())
	assert.Equal(t, "ACK", sio.PacketAck.String())
}
