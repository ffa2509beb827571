package streaming

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldz/scheduler-engine/internal/model"
)

func startEchoServer(t *testing.T, upgrader *Upgrader) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r)
		require.NoError(t, err)
		conn := NewConn(ws, nil)
		defer conn.Close()

		for {
			msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msg.Type == MessageTypeInput {
				out := model.ScheduledOutput{UniqueID: msg.Input.UniqueID}
				if err := conn.WriteOutput(out); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return NewConn(ws, nil)
}

func TestConn_RoundTripsScheduledInputAndOutput(t *testing.T) {
	srv := startEchoServer(t, NewUpgrader(nil))
	client := dial(t, srv)
	defer client.Close()

	require.NoError(t, client.WriteInput(model.ScheduledInput{UniqueID: 7}))

	msg, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, MessageTypeOutput, msg.Type)
	require.NotNil(t, msg.Output)
	assert.Equal(t, uint32(7), msg.Output.UniqueID)
}

func TestConn_WriteError(t *testing.T) {
	srv := startEchoServer(t, NewUpgrader(nil))
	serverSideErrServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := NewUpgrader(nil).Upgrade(w, r)
		require.NoError(t, err)
		conn := NewConn(ws, nil)
		defer conn.Close()
		require.NoError(t, conn.WriteError("malformed input: duplicate team id"))
	}))
	defer serverSideErrServer.Close()
	_ = srv

	client := dial(t, serverSideErrServer)
	defer client.Close()

	msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "duplicate team id")
}

func TestUpgrader_RestrictsOrigin(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://allowed.example"})
	// startEchoServer requires the upgrade to succeed; this handler asserts
	// that the upgrade is refused instead.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r)
		if err == nil {
			ws.Close()
		}
		assert.Error(t, err)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	headers := http.Header{"Origin": []string{"https://not-allowed.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, headers)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestEncodeDecodeJSON(t *testing.T) {
	msg := StreamMessage{Type: MessageTypeOutput, Output: &model.ScheduledOutput{UniqueID: 3}, Timestamp: time.Unix(0, 0)}
	data, err := EncodeJSON(msg)
	require.NoError(t, err)

	decoded, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, decoded.Type)
	require.NotNil(t, decoded.Output)
	assert.Equal(t, uint32(3), decoded.Output.UniqueID)
}
