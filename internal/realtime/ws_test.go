package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSConn_SendAndClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ready := make(chan *WSConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewWSConn(ws)
		ready <- c
		_ = c.Run()
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	var server *WSConn
	select {
	case server = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}

	require.NoError(t, server.Send(Message{Type: TypeNotification, Data: map[string]string{"title": "hi"}}))
	var got Message
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, TypeNotification, got.Type)

	require.NoError(t, server.Close(websocket.ClosePolicyViolation, "bye"))
	assert.NoError(t, server.Close(websocket.ClosePolicyViolation, "bye"), "second close is a no-op")
	assert.Error(t, server.Send(Message{Type: "late"}))

	_, _, err = client.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}
