package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"notion-lite/workspace/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	SnapshotEvent = "page.snapshot"
)

// WebSocketServiceInterface defines the operations provided by the WebSocket service
type WebSocketServiceInterface interface {
	Start()
	Stop()
	HandleConnection(c *gin.Context)
	ClientCount() int
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID uuid.UUID
	Hub    *WebSocketService
	Conn   *websocket.Conn
	Send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	Subscriptions map[string]context.CancelFunc // page id -> feed cancel
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pagePayload struct {
	PageID string `json:"pageId"`
}

// WebSocketService pushes live page snapshots to connected clients.
type WebSocketService struct {
	subs SubscriptionServiceInterface

	clients      map[string]*Client
	register     chan *Client
	unregister   chan *Client
	clientsMutex sync.RWMutex

	upgrader websocket.Upgrader

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

// NewWebSocketService creates a new WebSocket service
func NewWebSocketService(subs SubscriptionServiceInterface) *WebSocketService {
	return &WebSocketService{
		subs:       subs,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origins are enforced by the CORS middleware
			},
		},
		stopChan: make(chan struct{}),
	}
}

var WebSocketServiceInstance WebSocketServiceInterface

func (ws *WebSocketService) Start() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.isRunning {
		return
	}
	ws.isRunning = true
	ws.stopChan = make(chan struct{})
	go ws.run(ws.stopChan)
	log.Println("WebSocket service started")
}

// Stop gracefully shuts down the WebSocket service
func (ws *WebSocketService) Stop() {
	ws.mu.Lock()
	if !ws.isRunning {
		ws.mu.Unlock()
		return
	}
	ws.isRunning = false
	close(ws.stopChan)
	ws.mu.Unlock()

	ws.clientsMutex.Lock()
	for id, client := range ws.clients {
		client.cancel()
		delete(ws.clients, id)
	}
	ws.clientsMutex.Unlock()

	log.Println("WebSocket service stopped")
}

func (ws *WebSocketService) ClientCount() int {
	ws.clientsMutex.RLock()
	defer ws.clientsMutex.RUnlock()
	return len(ws.clients)
}

// run handles the main client message hub
func (ws *WebSocketService) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case client := <-ws.register:
			ws.clientsMutex.Lock()
			ws.clients[client.ID] = client
			ws.clientsMutex.Unlock()
			log.Printf("Client connected: %s (user: %s)", client.ID, client.UserID)

		case client := <-ws.unregister:
			ws.clientsMutex.Lock()
			if _, ok := ws.clients[client.ID]; ok {
				delete(ws.clients, client.ID)
				log.Printf("Client disconnected: %s", client.ID)
			}
			ws.clientsMutex.Unlock()
			client.cancel()
		}
	}
}

// HandleConnection upgrades the request to a WebSocket. The user comes from the
// X-User-ID header or the user_id query parameter.
func (ws *WebSocketService) HandleConnection(c *gin.Context) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		raw = c.Query("user_id")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:            uuid.New().String(),
		UserID:        userID,
		Hub:           ws,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		ctx:           ctx,
		cancel:        cancel,
		Subscriptions: make(map[string]context.CancelFunc),
	}

	select {
	case ws.register <- client:
	case <-ws.stopChan:
		cancel()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump handles incoming messages from the WebSocket client
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.ctx.Done():
		}
		c.cancel()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Error reading from WebSocket: %v", err)
			}
			return
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processMessage handles messages received from the client
func (c *Client) processMessage(msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		log.Printf("Error parsing client message: %v", err)
		c.send(models.NewStandardMessage(models.ErrorMessage, "invalid_message", gin.H{"error": err.Error()}))
		return
	}

	switch clientMsg.Type {
	case "subscribe":
		c.handleSubscribe(clientMsg)
	case "unsubscribe":
		c.handleUnsubscribe(clientMsg)
	case "ping":
		c.send(models.NewStandardMessage(models.EventMessage, "pong", nil))
	default:
		log.Printf("Unknown message type: %s", clientMsg.Type)
	}
}

// handleSubscribe starts forwarding snapshots of a page to the client
func (c *Client) handleSubscribe(msg ClientMessage) {
	var payload pagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.PageID == "" {
		c.send(models.NewStandardMessage(models.ErrorMessage, "invalid_subscription", gin.H{"error": "pageId required"}))
		return
	}

	c.mu.Lock()
	if _, alreadySubscribed := c.Subscriptions[payload.PageID]; alreadySubscribed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.Subscriptions[payload.PageID] = cancel
	c.mu.Unlock()

	feed, err := c.Hub.subs.Subscribe(ctx, c.UserID, payload.PageID)
	if err != nil {
		log.Printf("Failed to subscribe client %s to %s: %v", c.ID, payload.PageID, err)
		c.dropSubscription(payload.PageID)
		c.send(models.NewStandardMessage(models.ErrorMessage, "subscription_failed", gin.H{"error": err.Error()}).WithPage(payload.PageID))
		return
	}

	log.Printf("Client %s subscribed to page %s", c.ID, payload.PageID)
	c.send(models.NewStandardMessage(models.SubscriptionMessage, "confirmed", payload).WithPage(payload.PageID))

	go func() {
		for snap := range feed {
			c.send(models.NewStandardMessage(models.SnapshotMessage, SnapshotEvent, snap).WithPage(snap.PageID))
		}
	}()
}

// handleUnsubscribe stops the page feed
func (c *Client) handleUnsubscribe(msg ClientMessage) {
	var payload pagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.PageID == "" {
		return
	}
	if c.dropSubscription(payload.PageID) {
		log.Printf("Client %s unsubscribed from page %s", c.ID, payload.PageID)
		c.send(models.NewStandardMessage(models.SubscriptionMessage, "unsubscribed", payload).WithPage(payload.PageID))
	}
}

func (c *Client) dropSubscription(pageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.Subscriptions[pageID]
	if ok {
		cancel()
		delete(c.Subscriptions, pageID)
	}
	return ok
}

// send queues a message. A client whose buffer is full is disconnected.
func (c *Client) send(msg *models.StandardMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error serializing server message: %v", err)
		return
	}
	select {
	case c.Send <- data:
	case <-c.ctx.Done():
	default:
		log.Printf("Client %s send buffer full, removing client", c.ID)
		c.cancel()
	}
}
