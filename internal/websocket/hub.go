package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// AllPortfolios subscribes a client to every completed analysis
const AllPortfolios = "*"

// Hub maintains the set of active clients and pushes analysis summaries to them
type Hub struct {
	clients       map[*Client]bool
	broadcast     chan outbound
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool // portfolio ID -> clients
	done          chan struct{}
	log           *logger.Logger
	mu            sync.RWMutex
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	id            string
	subscriptions map[string]bool
	closed        bool
	mu            sync.Mutex
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Portfolio string      `json:"portfolio,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ID        string      `json:"id,omitempty"`
}

// SubscriptionMessage is sent by clients to follow portfolios
type SubscriptionMessage struct {
	Type       string   `json:"type"`
	Portfolios []string `json:"portfolios"`
	ID         string   `json:"id,omitempty"`
}

// AnalysisSummary is the dashboard view of a completed run
type AnalysisSummary struct {
	ID               string                   `json:"id"`
	PortfolioID      string                   `json:"portfolioId,omitempty"`
	Timestamp        time.Time                `json:"timestamp"`
	Seed             uint64                   `json:"seed"`
	Volatility       float64                  `json:"volatility"`
	Risk             models.RiskMetricsBundle `json:"risk"`
	MedianFinalValue map[string]float64       `json:"medianFinalValue"`
	DurationMillis   int64                    `json:"durationMillis"`
}

type outbound struct {
	portfolio string
	data      []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan outbound, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
		log:           logger.GetLogger("websocket.hub"),
	}
}

// Run owns the client set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("WebSocket hub shutting down")
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Infof("Client %s registered", client.id)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Infof("Client %s unregistered", client.id)
			}

		case msg := <-h.broadcast:
			for _, client := range h.recipients(msg.portfolio) {
				if !h.clients[client] {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.log.Warnf("Client %s is not keeping up, disconnecting", client.id)
					h.drop(client)
				}
			}
		}
	}
}

// drop must only be called from Run
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.mu.Lock()
	client.closed = true
	close(client.send)
	client.mu.Unlock()
	h.removeClientSubscriptions(client)
}

// Name identifies the sink in metrics
func (h *Hub) Name() string {
	return "websocket"
}

// Publish queues a summary of result for subscribed clients
func (h *Hub) Publish(ctx context.Context, result *models.AnalysisResult) error {
	if result == nil {
		return errors.InvalidArgument("cannot publish nil result")
	}

	data, err := json.Marshal(Message{
		Type:      "analysis_completed",
		Portfolio: result.PortfolioID,
		Data:      Summarize(result),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal analysis summary")
	}

	select {
	case h.broadcast <- outbound{portfolio: result.PortfolioID, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errors.Internal("websocket hub is stopped")
	}
}

// Summarize reduces a result to what dashboards render live
func Summarize(result *models.AnalysisResult) AnalysisSummary {
	medians := make(map[string]float64, len(result.Projections))
	for name, p := range result.Projections {
		medians[name] = p.MedianFinalValue
	}
	return AnalysisSummary{
		ID:               result.ID,
		PortfolioID:      result.PortfolioID,
		Timestamp:        result.Timestamp,
		Seed:             result.Seed,
		Volatility:       result.Portfolio.Volatility,
		Risk:             result.Risk,
		MedianFinalValue: medians,
		DurationMillis:   result.Duration.Milliseconds(),
	}
}

// ClientCount returns the number of subscriptions for a portfolio key
func (h *Hub) ClientCount(portfolio string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[portfolio])
}

// HandleWebSocket handles WebSocket upgrade and client management
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            uuid.NewString(),
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(messageData)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(messageData []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.handleSubscription(msg)
	case "unsubscribe":
		c.handleUnsubscription(msg)
	case "ping":
		c.sendMessage(Message{Type: "pong", ID: msg.ID})
	default:
		c.sendError("Unknown message type")
	}
}

func (c *Client) handleSubscription(msg SubscriptionMessage) {
	if len(msg.Portfolios) == 0 {
		msg.Portfolios = []string{AllPortfolios}
	}

	c.mu.Lock()
	c.hub.mu.Lock()
	for _, id := range msg.Portfolios {
		c.subscriptions[id] = true
		if c.hub.subscriptions[id] == nil {
			c.hub.subscriptions[id] = make(map[*Client]bool)
		}
		c.hub.subscriptions[id][c] = true
	}
	c.hub.mu.Unlock()
	c.mu.Unlock()

	c.sendMessage(Message{
		Type: "subscription_confirmed",
		Data: map[string]interface{}{"portfolios": msg.Portfolios},
		ID:   msg.ID,
	})
}

func (c *Client) handleUnsubscription(msg SubscriptionMessage) {
	c.mu.Lock()
	c.hub.mu.Lock()
	for _, id := range msg.Portfolios {
		delete(c.subscriptions, id)
		if clients, exists := c.hub.subscriptions[id]; exists {
			delete(clients, c)
			if len(clients) == 0 {
				delete(c.hub.subscriptions, id)
			}
		}
	}
	c.hub.mu.Unlock()
	c.mu.Unlock()

	c.sendMessage(Message{
		Type: "unsubscription_confirmed",
		Data: map[string]interface{}{"portfolios": msg.Portfolios},
		ID:   msg.ID,
	})
}

// sendMessage queues a direct reply, dropping it when the buffer is full
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warnf("Dropping reply to client %s", c.id)
	}
}

func (c *Client) sendError(errorMsg string) {
	c.sendMessage(Message{
		Type:  "error",
		Error: errorMsg,
	})
}

// removeClientSubscriptions removes all subscriptions for a client
func (h *Hub) removeClientSubscriptions(client *Client) {
	client.mu.Lock()
	defer client.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range client.subscriptions {
		if clients, exists := h.subscriptions[id]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, id)
			}
		}
	}
}

// recipients are the subscribers of portfolio plus the wildcard subscribers
func (h *Hub) recipients(portfolio string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]bool)
	var out []*Client
	for _, key := range []string{portfolio, AllPortfolios} {
		if key == "" {
			continue
		}
		for client := range h.subscriptions[key] {
			if !seen[client] {
				seen[client] = true
				out = append(out, client)
			}
		}
	}
	return out
}
