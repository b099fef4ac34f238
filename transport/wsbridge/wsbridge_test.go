package wsbridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/transport"
)

// dialTestServer mounts the transport on an httptest server and dials it
// as the UI side.
func dialTestServer(t *testing.T, tr *Transport) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(tr)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestWithPathValidation(t *testing.T) {
	_, err := New("127.0.0.1:0", WithPath("no-slash"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestInboundFrameReachesHandler(t *testing.T) {
	tr, err := New("127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan transport.Frame, 1)
	tr.SetHandler(func(f transport.Frame) { received <- f })

	ui := dialTestServer(t, tr)

	frame := transport.Frame{Kind: transport.KindText, Target: "GameManager", Method: "start", Text: "go"}
	wire, err := frame.Encode()
	require.NoError(t, err)
	require.NoError(t, ui.WriteMessage(websocket.TextMessage, wire))

	select {
	case got := <-received:
		assert.Equal(t, frame, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestOutboundFrameReachesUI(t *testing.T) {
	tr, err := New("127.0.0.1:0")
	require.NoError(t, err)

	ui := dialTestServer(t, tr)

	// Wait for the server side to register the connection.
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.conn != nil
	}, 2*time.Second, 10*time.Millisecond)

	frame := transport.Frame{Kind: transport.KindText, Target: "ui", Method: "onScore", Text: "42"}
	require.NoError(t, tr.Send(context.Background(), frame))

	_ = ui.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, wire, err := ui.ReadMessage()
	require.NoError(t, err)

	got, err := transport.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestMalformedFrameIsDropped(t *testing.T) {
	tr, err := New("127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan transport.Frame, 2)
	tr.SetHandler(func(f transport.Frame) { received <- f })

	ui := dialTestServer(t, tr)

	require.NoError(t, ui.WriteMessage(websocket.TextMessage, []byte("not a frame")))

	valid := transport.Frame{Kind: transport.KindText, Target: "T", Method: "m"}
	wire, err := valid.Encode()
	require.NoError(t, err)
	require.NoError(t, ui.WriteMessage(websocket.TextMessage, wire))

	select {
	case got := <-received:
		assert.Equal(t, valid, got, "only the valid frame is delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	tr, err := New("127.0.0.1:0")
	require.NoError(t, err)

	frame := transport.Frame{Kind: transport.KindText, Target: "T", Method: "m"}
	assert.ErrorIs(t, tr.Send(context.Background(), frame), errors.ErrNotConnected)
}

func TestSendAfterClose(t *testing.T) {
	tr, err := New("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	frame := transport.Frame{Kind: transport.KindText, Target: "T", Method: "m"}
	assert.ErrorIs(t, tr.Send(context.Background(), frame), errors.ErrTransportClosed)
}
