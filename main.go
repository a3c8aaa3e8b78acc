package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"sanitrack/internal/assignment"
	"sanitrack/internal/auth"
	"sanitrack/internal/config"
	"sanitrack/internal/incident"
	"sanitrack/internal/models"
	"sanitrack/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type Server struct {
	cfg       *config.Config
	store     store.Store
	router    *mux.Router
	hub       *Hub
	upgrader  websocket.Upgrader
	auth      *auth.Authority
	incidents *incident.Service
	engine    *assignment.Engine
	limiter   *rateLimiter
	log       *slog.Logger
}

// Hub fans incident events out to connected admin dashboards. Its maps
// are owned by the run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *slog.Logger
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	account string
}

func NewServer(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *Server {
	hub := newHub(logger)

	engine := assignment.New(st, hub, logger)
	s := &Server{
		cfg:    cfg,
		store:  st,
		router: mux.NewRouter(),
		hub:    hub,
		auth: auth.New(st, auth.Options{
			AccessSecret:           []byte(cfg.JWTSecret),
			RefreshSecret:          []byte(cfg.JWTRefreshSecret),
			AccessTTL:              cfg.AccessTokenTTL,
			SessionTTL:             cfg.SessionTTL,
			RememberMeTTL:          cfg.RememberMeTTL,
			BcryptCost:             cfg.BcryptCost,
			AllowAdminRegistration: cfg.AllowAdminRegistration,
		}, logger),
		incidents: incident.New(st, engine, hub, logger),
		engine:    engine,
		limiter:   newRateLimiter(cfg.AuthRateLimit),
		log:       logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}

	s.setupRoutes()
	go s.hub.run(ctx)

	return s
}

func newHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Publish queues an event for every connected client. It never blocks;
// events are dropped when the hub is saturated or stopped.
func (h *Hub) Publish(e models.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("event dropped", "type", e.Type, "id", e.ID)
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("monitor connected", "account_id", client.account, "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("monitor disconnected", "account_id", client.account, "clients", len(h.clients))
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

// add registers c unless the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", "account_id", c.account, "error", err)
			}
			return
		}
	}
}

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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Development() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := seedAdmin(ctx, cfg, st, logger); err != nil {
		logger.Error("failed to seed admin", "error", err)
		os.Exit(1)
	}

	server := NewServer(ctx, cfg, st, logger)
	if !nativeSessionExpiry(cfg) {
		go server.auth.RunSessionSweeper(ctx, cfg.SessionSweepInterval)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "environment", cfg.Environment)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
