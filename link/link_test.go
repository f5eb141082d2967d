package link

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"micro-blocks.local", "ws://micro-blocks.local/api/ws"},
		{"http://192.168.4.1", "ws://192.168.4.1/api/ws"},
		{"http://192.168.4.1/", "ws://192.168.4.1/api/ws"},
		{"https://device.example:8443/base", "wss://device.example:8443/base/api/ws"},
		{"ws://localhost:8080", "ws://localhost:8080/api/ws"},
	}
	for _, tt := range tests {
		got, err := URL(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
	_, err := URL("ftp://device")
	require.Error(t, err)
}

func TestGravity(t *testing.T) {
	m := Gravity(0.5, -1, 9.81)
	frame := m.Encode()
	require.Len(t, frame, 13)
	require.Equal(t, byte(GravitySensorValue), frame[0])

	decoded, err := DecodeMessage(frame)
	require.NoError(t, err)
	x, y, z, err := DecodeGravity(decoded)
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, -1, 9.81}, []float32{x, y, z})

	_, _, _, err = DecodeGravity(Message{Type: GravitySensorValue, Payload: []byte{1, 2}})
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestTrigger(t *testing.T) {
	frame := Trigger(0x0102).Encode()
	require.Equal(t, []byte{3, 0x02, 0x01}, frame)
	m, err := DecodeMessage(frame)
	require.NoError(t, err)
	thread, err := DecodeTrigger(m)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), thread)

	_, err = DecodeMessage(nil)
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestUISnapshot(t *testing.T) {
	elements := []Element{
		{Kind: Button, X: 0, Y: 0, ColSpan: 2, RowSpan: 1, OnClick: 1, OnPress: 0xffff, OnRelease: 2, Text: "Go"},
		{Kind: Label, X: 0, Y: 1, ColSpan: 1, RowSpan: 1, Text: "t=21.50"},
		{Kind: SignalLight, X: 1, Y: 1, ColSpan: 1, RowSpan: 1, Colour: [3]uint8{255, 128, 0}},
	}
	m, err := EncodeUI(elements)
	require.NoError(t, err)
	require.Equal(t, UISnapshot, m.Type)
	// count, then the button: kind, cell, three handlers, text
	require.Equal(t, []byte{3, 0, 0, 0, 2, 1, 1, 0, 0xff, 0xff, 2, 0, 2, 'G', 'o'}, m.Payload[:15])

	decoded, err := DecodeUI(m)
	require.NoError(t, err)
	require.Equal(t, elements, decoded)

	m.Payload = m.Payload[:len(m.Payload)-1]
	_, err = DecodeUI(m)
	require.ErrorIs(t, err, ErrShortMessage)

	_, err = DecodeUI(Log("hi"))
	require.Error(t, err)
}

func TestConn(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte("hello"))
		_ = ws.WriteMessage(websocket.BinaryMessage, Log("booted").Encode())
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		m, _ := DecodeMessage(frame)
		received <- m
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	conn, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)

	m, err := conn.Receive()
	require.NoError(t, err)
	require.Equal(t, LogSnapshot, m.Type)
	require.Equal(t, "booted", string(m.Payload))

	require.NoError(t, conn.Send(Trigger(4)))
	got := <-received
	thread, err := DecodeTrigger(got)
	require.NoError(t, err)
	require.Equal(t, uint16(4), thread)
	require.NoError(t, conn.Close())
}
