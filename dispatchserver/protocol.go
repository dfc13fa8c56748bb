// Package dispatchserver exposes a running solver over HTTP and a websocket
// push channel: REST endpoints to trigger solves and fetch results, a
// websocket hub for streaming solve progress to connected dashboards, an
// audit trail, and a KPI snapshot ticker.
package dispatchserver

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Request is an inbound websocket command: act on Object with Action, with
// Params carrying action-specific JSON.
type Request struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to a Request, or an unsolicited push.
type Response struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"` // "ok" | "error"
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RawJSON wraps an already-marshaled JSON payload for NewResponse.
type RawJSON []byte

// NewResponse builds a successful Response carrying data.
func NewResponse(id string, data json.RawMessage) Response {
	return Response{ID: id, Status: "ok", Data: data}
}

// NewOkResponse builds a successful Response carrying only a message.
func NewOkResponse(id, message string) Response {
	return Response{ID: id, Status: "ok", Message: message}
}

// NewErrorResponse builds a failed Response.
func NewErrorResponse(id string, err error) Response {
	return Response{ID: id, Status: "error", Message: err.Error()}
}

// hubObject dispatches requests addressed to one named object ("solve" or
// "suggestions"), the same per-object registry pattern the
// teacher used for "simulation"/"suggestions".
type hubObject interface {
	dispatch(h *Hub, req Request, conn *connection)
}

// connection is one websocket client: a receive buffer (pushChan) drained by
// writePump, and the underlying gorilla connection.
type connection struct {
	ws       *websocket.Conn
	pushChan chan Response
}

// Hub owns every live connection and the object registry requests dispatch
// through. There is exactly one Hub per running server.
type Hub struct {
	objects     map[string]hubObject
	register    chan *connection
	unregister  chan *connection
	broadcast   chan Response
	connections map[*connection]bool
}

// NewHub returns an empty Hub; register the solve-domain hubObjects with
// RegisterObject before calling Run.
func NewHub() *Hub {
	return &Hub{
		objects:     make(map[string]hubObject),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		broadcast:   make(chan Response, 64),
		connections: make(map[*connection]bool),
	}
}

// RegisterObject adds a named hubObject to the dispatch registry.
func (h *Hub) RegisterObject(name string, obj hubObject) {
	h.objects[name] = obj
}

// Broadcast pushes resp to every connected client, non-blocking: a slow
// client's full pushChan is dropped rather than stalling the others.
func (h *Hub) Broadcast(resp Response) {
	select {
	case h.broadcast <- resp:
	default:
	}
}

// run is the Hub's event loop: a single goroutine owns the connections map,
// so register/unregister/broadcast need no lock. up is closed once the loop
// is ready to accept connections.
func (h *Hub) run(up chan<- bool) {
	close(up)
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.pushChan)
			}
		case resp := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.pushChan <- resp:
				default:
				}
			}
		}
	}
}

func (c *connection) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			return
		}
		obj, ok := h.objects[req.Object]
		if !ok {
			c.pushChan <- NewErrorResponse(req.ID, errUnknownObject(req.Object))
			continue
		}
		obj.dispatch(h, req, c)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case resp, ok := <-c.pushChan:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
