// Package transport provides the WebSocket transport layer for the
// resolver daemon.
package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageHandler is the callback for handling incoming binary messages.
type MessageHandler func(clientID string, data []byte) error

// Client represents a connected WebSocket client.
type Client struct {
	ID       string
	Conn     *websocket.Conn
	Server   *WebSocketServer
	SendChan chan []byte
	mu       sync.RWMutex
	closed   bool
}

// Options configures a WebSocketServer.
type Options struct {
	// AllowedOrigins restricts upgrade requests; "*" allows any.
	AllowedOrigins []string

	// MaxMessageSize caps incoming message size in bytes.
	MaxMessageSize int64
}

// WebSocketServer accepts resolver clients and shuttles binary frames to
// the message handler.
type WebSocketServer struct {
	// Server configuration
	Addr     string
	Upgrader websocket.Upgrader

	maxMessageSize int64
	logger         *zap.Logger

	// Connection management
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	register   chan *Client
	unregister chan *Client

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	// Message handler callback
	messageHandler MessageHandler

	// HTTP server
	server *http.Server
}

// NewWebSocketServer creates a new WebSocket server instance.
func NewWebSocketServer(addr string, opts Options, logger *zap.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 64 * 1024
	}

	return &WebSocketServer{
		Addr: addr,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(opts.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		maxMessageSize: maxSize,
		logger:         logger,
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// originChecker builds the upgrade origin check from the allowlist.
func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allowSet[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients don't send an Origin header.
			return true
		}
		_, ok := allowSet[origin]
		return ok
	}
}

// SetMessageHandler sets the callback function for handling messages.
func (ws *WebSocketServer) SetMessageHandler(handler MessageHandler) {
	ws.messageHandler = handler
}

// Start starts the WebSocket server.
func (ws *WebSocketServer) Start() error {
	if ws.running.Load() {
		return nil
	}

	ws.running.Store(true)

	// Hub goroutine manages registration and unregistration.
	ws.wg.Add(1)
	go ws.runHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handleWebSocket)
	mux.HandleFunc("/health", ws.handleHealth)

	ws.server = &http.Server{
		Addr:    ws.Addr,
		Handler: mux,
	}

	ws.logger.Info("websocket server starting", zap.String("addr", ws.Addr))

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("websocket server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the WebSocket server.
func (ws *WebSocketServer) Stop() error {
	if !ws.running.Load() {
		return nil
	}

	ws.logger.Info("stopping websocket server")

	ws.cancel()

	ws.clientsMu.Lock()
	for _, client := range ws.clients {
		client.Close()
	}
	ws.clients = make(map[string]*Client)
	ws.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(ctx); err != nil {
		ws.logger.Warn("server shutdown error", zap.Error(err))
	}

	ws.wg.Wait()

	ws.running.Store(false)
	ws.logger.Info("websocket server stopped")
	return nil
}

// SendToClient sends a message to a specific client.
func (ws *WebSocketServer) SendToClient(clientID string, data []byte) bool {
	ws.clientsMu.RLock()
	client, exists := ws.clients[clientID]
	ws.clientsMu.RUnlock()

	if !exists {
		return false
	}

	select {
	case client.SendChan <- data:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

// GetClientCount returns the number of connected clients.
func (ws *WebSocketServer) GetClientCount() int {
	ws.clientsMu.RLock()
	defer ws.clientsMu.RUnlock()
	return len(ws.clients)
}

// handleWebSocket handles WebSocket upgrade requests.
func (ws *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := generateClientID()

	client := &Client{
		ID:       clientID,
		Conn:     conn,
		Server:   ws,
		SendChan: make(chan []byte, 256),
	}

	ws.register <- client

	go client.writePump()
	go client.readPump()

	ws.logger.Debug("client connected",
		zap.String("client", clientID), zap.String("remote", r.RemoteAddr))
}

// handleHealth provides a health check endpoint.
func (ws *WebSocketServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, ws.GetClientCount())
}

// runHub manages client registration and unregistration.
func (ws *WebSocketServer) runHub() {
	defer ws.wg.Done()

	for {
		select {
		case <-ws.ctx.Done():
			return

		case client := <-ws.register:
			ws.clientsMu.Lock()
			ws.clients[client.ID] = client
			ws.clientsMu.Unlock()

		case client := <-ws.unregister:
			ws.clientsMu.Lock()
			if _, exists := ws.clients[client.ID]; exists {
				delete(ws.clients, client.ID)
				close(client.SendChan)
			}
			ws.clientsMu.Unlock()
		}
	}
}

// readPump handles incoming messages from a client.
func (c *Client) readPump() {
	defer func() {
		c.Server.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Server.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Server.logger.Warn("websocket read error",
					zap.String("client", c.ID), zap.Error(err))
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if c.Server.messageHandler != nil {
			if err := c.Server.messageHandler(c.ID, message); err != nil {
				c.Server.logger.Warn("message handler error",
					zap.String("client", c.ID), zap.Error(err))
			}
		}
	}
}

// writePump handles outgoing messages to a client.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.SendChan:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.Server.logger.Warn("websocket write error",
					zap.String("client", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Server.ctx.Done():
			return
		}
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Conn.Close()
}

// IsClosed checks if the client connection is closed.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// generateClientID generates a unique client ID.
func generateClientID() string {
	return "client_" + time.Now().Format("20060102150405") + "_" + randomString(8)
}

// randomString generates a cryptographically secure random string.
func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			b[i] = charset[i%len(charset)]
			continue
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
