// Package streaming implements the websocket transport carrying the
// Schedule bidirectional RPC (spec section 4.6/6): one JSON-framed
// StreamMessage envelope per ScheduledInput/ScheduledOutput, multiplexed
// over a single upgraded connection per stream.
package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/pkg/logging"
)

// IdleTimeout and StreamDeadline bound a single Schedule stream (spec
// section 5: "stream idle 120 s between messages; total stream deadline
// 15 minutes").
const (
	IdleTimeout    = 120 * time.Second
	StreamDeadline = 15 * time.Minute
	pingInterval   = 30 * time.Second
)

// MessageType labels the payload carried by a StreamMessage envelope.
type MessageType string

const (
	MessageTypeInput      MessageType = "scheduled_input"
	MessageTypeOutput     MessageType = "scheduled_output"
	MessageTypeError      MessageType = "error"
	MessageTypeDiagnostic MessageType = "diagnostic"
	MessageTypeClosed     MessageType = "stream_closed"
)

// Diagnostic carries a non-fatal per-input warning (currently only
// UnplacedPairs) from the server back to the orchestrator, alongside the
// ScheduledOutput it qualifies (spec section 4.7 step 5: "surface
// diagnostics for any unplaced pair").
type Diagnostic struct {
	UniqueID uint32 `json:"unique_id"`
	Count    int    `json:"unplaced_count"`
}

// StreamMessage is the single envelope type exchanged in both directions
// over the websocket connection.
type StreamMessage struct {
	Type       MessageType            `json:"type"`
	Input      *model.ScheduledInput  `json:"input,omitempty"`
	Output     *model.ScheduledOutput `json:"output,omitempty"`
	Diagnostic *Diagnostic            `json:"diagnostic,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Conn wraps a websocket connection with the read/write helpers both the
// server and client side need; it is safe for one concurrent reader and
// one concurrent writer (the usual gorilla/websocket contract).
type Conn struct {
	ws     *websocket.Conn
	logger logging.Logger
}

// NewConn wraps an already-established websocket connection.
func NewConn(ws *websocket.Conn, logger logging.Logger) *Conn {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Conn{ws: ws, logger: logger}
}

// ReadMessage reads and decodes the next StreamMessage, applying the
// idle-between-messages read deadline.
func (c *Conn) ReadMessage() (StreamMessage, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(IdleTimeout))
	var msg StreamMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		return StreamMessage{}, err
	}
	return msg, nil
}

// WriteMessage encodes and writes a StreamMessage.
func (c *Conn) WriteMessage(msg StreamMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return c.ws.WriteJSON(msg)
}

// WriteInput sends a ScheduledInput envelope (used by the client side).
func (c *Conn) WriteInput(in model.ScheduledInput) error {
	return c.WriteMessage(StreamMessage{Type: MessageTypeInput, Input: &in})
}

// WriteOutput sends a ScheduledOutput envelope (used by the server side).
func (c *Conn) WriteOutput(out model.ScheduledOutput) error {
	return c.WriteMessage(StreamMessage{Type: MessageTypeOutput, Output: &out})
}

// WriteDiagnostic sends a non-fatal per-input diagnostic, e.g. unplaced
// pairs (spec section 4.5/4.7). It never closes the stream.
func (c *Conn) WriteDiagnostic(uniqueID uint32, count int) error {
	return c.WriteMessage(StreamMessage{Type: MessageTypeDiagnostic, Diagnostic: &Diagnostic{UniqueID: uniqueID, Count: count}})
}

// WriteError sends an error envelope; per spec section 7 this does not by
// itself close the stream (MalformedInput aborts one input, the caller
// decides whether to keep reading).
func (c *Conn) WriteError(message string) error {
	return c.WriteMessage(StreamMessage{Type: MessageTypeError, Error: message})
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// KeepAlive pings the peer on pingInterval until ctx is cancelled or a
// ping fails, at which point it returns (the caller's read loop will then
// observe the closed connection).
func (c *Conn) KeepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl may run concurrently with the connection's
			// single data writer; WriteMessage may not.
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingInterval)); err != nil {
				c.logger.Warn("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// Upgrader wraps gorilla/websocket.Upgrader with the origin-checking
// policy used by the scheduler server's upgrade endpoint.
type Upgrader struct {
	inner websocket.Upgrader
}

// NewUpgrader creates an Upgrader. allowedOrigins empty means "allow any
// origin" (acceptable for a server reachable only over an authenticated,
// TLS-terminated channel); non-empty restricts to an exact match.
func NewUpgrader(allowedOrigins []string) *Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Upgrader{
		inner: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// Upgrade upgrades an HTTP request to a websocket connection.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return u.inner.Upgrade(w, r, nil)
}

// AuthHeaderSetter attaches authentication to an outbound dial request;
// satisfied by pkg/auth.Provider without this package importing it
// directly, avoiding an import cycle with pkg/auth's own tests.
type AuthHeaderSetter interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// Dial opens the client side of a Schedule stream against url (e.g.
// "wss://scheduler.example.com/ws/schedule"), attaching authentication
// via auther before the websocket handshake.
func Dial(ctx context.Context, url string, auther AuthHeaderSetter, logger logging.Logger) (*Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if auther != nil {
		if err := auther.Authenticate(ctx, req); err != nil {
			return nil, err
		}
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, req.Header)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, logger), nil
}

// EncodeJSON and DecodeJSON encode and decode a StreamMessage outside of
// an active connection, using the same JSON form as the websocket frames.
func EncodeJSON(msg StreamMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func DecodeJSON(data []byte) (StreamMessage, error) {
	var msg StreamMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
