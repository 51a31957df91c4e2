package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialStream(t *testing.T, s *Stream) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestStream_Publish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream(zap.NewNop())
	go s.Run(ctx)
	conn := dialStream(t, s)

	s.Publish(MessageTypeEquity, base, EquityMessage{Cash: pt(900), Equity: pt(1010)})

	msg := readMessage(t, conn)
	assert.Equal(t, "equity", msg["type"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, "900", data["cash"])
	assert.Equal(t, "1010", data["equity"])
}

func TestStream_Attach(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream(zap.NewNop())
	go s.Run(ctx)
	conn := dialStream(t, s)

	st, _ := newRoundTrip(t, nil)
	s.Attach(st)
	require.NoError(t, st.Run(context.Background()))

	counts := make(map[string]int)
	for range 11 {
		counts[readMessage(t, conn)["type"].(string)]++
	}
	assert.Equal(t, map[string]int{"order": 6, "trade": 1, "equity": 4}, counts)
	assert.Zero(t, s.Dropped())
}

func TestStream_ClientDisconnect(t *testing.T) {
	s := NewStream(zap.NewNop())
	conn := dialStream(t, s)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStream_RunClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(zap.NewNop())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	conn := dialStream(t, s)

	cancel()
	<-done
	assert.Zero(t, s.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
}
