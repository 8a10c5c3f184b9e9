package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elijahnyp/presence_controller/engine"
	. "github.com/elijahnyp/presence_controller/util"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// SignalUpdate is the live feed payload for a single signal change
type SignalUpdate struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

var wsHub *WSHub

func init() {
	wsHub = NewHub()
	go wsHub.Run()
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Error().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Error().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Error().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// GroupsApi returns every group's signal states as JSON
func GroupsApi(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(400)
		if _, err := io.WriteString(w, "Bad Request Method\n"); err != nil {
			Logger.Error().Msgf("Error writing error response: %v", err)
		}
		return
	}
	if eng == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	answer := eng.Snapshot()
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("Error parsing form: %v", err), http.StatusBadRequest)
		return
	}
	group := r.FormValue("group")
	if group != "" {
		var filtered []engine.GroupState
		for _, gs := range answer {
			if gs.Name == group {
				filtered = append(filtered, gs)
			}
		}
		if len(filtered) == 0 {
			w.WriteHeader(404)
			if _, err := io.WriteString(w, "Group not found"); err != nil {
				Logger.Error().Msgf("Error writing error response: %v", err)
			}
			return
		}
		answer = filtered
	}
	w.Header().Add("Content-Type", "application/json")
	data, err := json.Marshal(answer)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshaling response: %v", err), http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		Logger.Error().Msgf("Error writing response: %v", err)
	}
}

// StatusOverview renders the group/signal table
func StatusOverview(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if r.Method != "GET" {
		return
	}
	if eng == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Add("Content-Type", "text/html")
	writeString := func(s string) {
		if _, err := io.WriteString(w, s); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
	}
	writeString("<html><body><table>")
	writeString("<tr><th>Group</th><th>Signal</th><th>Value</th><th>Decays In (seconds)</th></tr>")
	for _, gs := range eng.Snapshot() {
		for _, ss := range gs.Signals {
			writeString("<tr>")
			writeString(fmt.Sprintf("<td>%s (%s)</td>", gs.Name, gs.Mode))
			writeString(fmt.Sprintf("<td>%s</td>", ss.Name))
			writeString(fmt.Sprintf("<td>%v</td>", ss.Value))
			if ss.Pending {
				writeString(fmt.Sprintf("<td>%d</td>", int64(ss.DecayAt.Sub(now).Seconds())))
			} else {
				writeString("<td>-</td>")
			}
			writeString("</tr>")
		}
	}
	writeString("</table></body></html>")
}

// HomeHandler is a minimal landing page pointing at the live surfaces
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Add("Content-Type", "text/html")
	writeString := func(s string) {
		if _, err := io.WriteString(w, s); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
	}
	writeString("<html><body><h3>presence_controller</h3><ul>")
	writeString("<li><a href=\"/status\">status</a></li>")
	writeString("<li><a href=\"/api/groups\">groups api</a></li>")
	writeString("</ul></body></html>")
}
