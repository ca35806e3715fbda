package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/session"
	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = string(workflow.EventState)
	MsgTypeError     = string(workflow.EventError)
	MsgTypePong      = "pong"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSMessage is the envelope of every socket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorPayload carries a failed request's message
type WSErrorPayload struct {
	Stage   models.StageName `json:"stage"`
	Message string           `json:"message"`
}

// WebSocketHandler pushes workflow events to the browser
type WebSocketHandler struct {
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new event socket handler
func NewWebSocketHandler() *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and streams the session's
// workflow events until either side goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	wf, err := workflowFrom(c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := log.With().Str("session", session.ShortID(wf.ID())).Logger()
	logger.Debug().Msg("event socket connected")

	events, unsubscribe := wf.Subscribe()
	defer unsubscribe()

	// All writes happen on this goroutine; the reader only hands over pings.
	outbox := make(chan WSMessage, 8)
	readerDone := make(chan struct{})
	go wsh.readLoop(ws, outbox, readerDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := wsh.send(ws, WSMessage{Type: MsgTypeConnected, ID: wf.ID(), Payload: mustJSON(wf.Snapshot())}); err != nil {
		return nil
	}

	for {
		select {
		case <-readerDone:
			logger.Debug().Msg("event socket closed")
			return nil
		case msg := <-outbox:
			if err := wsh.send(ws, msg); err != nil {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"),
					time.Now().Add(writeWait))
				return nil
			}
			if err := wsh.send(ws, eventMessage(ev)); err != nil {
				logger.Warn().Err(err).Msg("failed to push event")
				return nil
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, outbox chan<- WSMessage, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(4 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("event socket read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		reply := WSMessage{Type: MsgTypePong, ID: msg.ID}
		if msg.Type != MsgTypePing {
			reply = WSMessage{Type: MsgTypeError, ID: msg.ID, Payload: mustJSON(WSErrorPayload{Message: "unknown message type: " + msg.Type})}
		}
		select {
		case outbox <- reply:
		default:
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}

func eventMessage(ev workflow.Event) WSMessage {
	if ev.Type == workflow.EventError {
		return WSMessage{Type: MsgTypeError, Payload: mustJSON(WSErrorPayload{Stage: ev.Stage, Message: ev.Message})}
	}
	return WSMessage{Type: MsgTypeState, Payload: mustJSON(ev.Snapshot)}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
