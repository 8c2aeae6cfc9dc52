// Package notify pushes crew events to connected websocket clients. The hub
// listens on its own address, separate from the API server.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	defaultPath         = "/ws"
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	broadcastQueueSize  = 64
	clientQueueSize     = 16
	shutdownTimeout     = 5 * time.Second
)

type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
	config *types.NotifyConfig

	upgrader  websocket.Upgrader
	server    *http.Server
	listener  net.Listener
	broadcast chan types.Event

	mu      sync.Mutex
	clients map[*client]struct{}

	state atomic.Value
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(ctx context.Context, logger types.Logger, config *types.NotifyConfig) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)

	h := &Hub{
		ctx:    hubCtx,
		cancel: cancel,
		logger: logger,
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		broadcast: make(chan types.Event, broadcastQueueSize),
		clients:   make(map[*client]struct{}),
	}
	h.state.Store(StateStopped)
	return h
}

func (h *Hub) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	path := h.config.Path
	if path == "" {
		path = defaultPath
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, h.handleConnection)

	addr := fmt.Sprintf("%s:%d", h.config.Host, h.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		h.setState(StateStopped)
		return types.WrapError(err, types.ErrServerStartFailed.Error())
	}

	h.server = &http.Server{Handler: mux}
	h.listener = listener

	go h.run()
	go func() {
		if serveErr := h.server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			h.logger.Error("Notify server failed", zap.Error(serveErr))
		}
	}()

	h.setState(StateRunning)
	h.logger.Info("Notify hub listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", path))
	return nil
}

func (h *Hub) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("Notify server shutdown timed out", zap.Error(err))
	}
	return nil
}

func (h *Hub) IsRunning() bool {
	return h.getState() == StateRunning
}

// Publish queues an event for all connected clients. Never blocks: when the
// hub is stopped or the queue is full the event is dropped with a log line.
func (h *Hub) Publish(event string, payload interface{}) {
	if !h.IsRunning() {
		h.logger.Debug("Dropping event, hub not running", zap.String("event", event))
		return
	}

	e := types.Event{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("Dropping event, broadcast queue full", zap.String("event", event))
	}
}

// Addr reports the bound listen address, useful when the configured port
// is 0.
func (h *Hub) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case event := <-h.broadcast:
			data, err := utils.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode event",
					zap.String("event", event.Event),
					zap.Error(err))
				continue
			}

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// A client that cannot keep up gets disconnected
					// rather than stalling the rest.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	h.readPump(c)
}

// readPump drains inbound frames so close and pong handling work; clients
// are listen-only.
func (h *Hub) readPump(c *client) {
	defer h.dropClient(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	pingInterval := time.Duration(h.config.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	writeWait := time.Duration(h.config.WriteWait) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) dropClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	c.conn.Close()
}

func (h *Hub) getState() State {
	return h.state.Load().(State)
}

func (h *Hub) setState(newState State) bool {
	currentState := h.getState()
	return h.state.CompareAndSwap(currentState, newState)
}

func (h *Hub) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}
