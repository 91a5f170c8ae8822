// Package liveserver serves the local cart feed: a websocket broadcast of
// snapshots plus whatever HTTP routes the caller mounts next to it.
package liveserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"cartsync/internal/core"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	websocketActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cartsync_websocket_active_connections",
		Help: "Current number of active feed connections",
	})

	requestsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_live_rejected_total",
		Help: "Total number of rejected live server requests",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(websocketActiveConnections)
	prometheus.MustRegister(requestsRejectedTotal)
}

// Options configures the live server
type Options struct {
	Addr           string
	AllowedOrigins []string
	Production     bool
	MaxConnections int
	// RateLimit is requests per second per client IP; 0 disables limiting
	RateLimit float64
	RateBurst int
	// StaticDir is served under "/" when set
	StaticDir string
}

// Server hosts the websocket feed, health, metrics and mounted routes
type Server struct {
	hub    *Hub
	opts   Options
	logger core.ILogger

	mux      *http.ServeMux
	upgrader websocket.Upgrader
	health   http.Handler

	connSemaphore chan struct{}
	ipLimiters    sync.Map // map[string]*rate.Limiter

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a server around hub
func NewServer(hub *Hub, logger core.ILogger, opts Options) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 100
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	s := &Server{
		hub:           hub,
		opts:          opts,
		logger:        logger.WithField("component", "live_server"),
		mux:           http.NewServeMux(),
		connSemaphore: make(chan struct{}, opts.MaxConnections),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.mux.HandleFunc("/ws", s.rateLimited(s.handleWebSocket))
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	if opts.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return s
}

// Handle mounts handler on pattern. Mutating routes should be wrapped
// with RateLimited.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// SetHealthHandler replaces the default /health response
func (s *Server) SetHealthHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

// RateLimited applies the per-IP limiter to h
func (s *Server) RateLimited(h http.Handler) http.Handler {
	return s.rateLimited(h.ServeHTTP)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("Starting live server", "addr", s.opts.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("live server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping live server")
	return s.srv.Shutdown(ctx)
}

// Broadcast pushes msg to every feed subscriber
func (s *Server) Broadcast(msg Message) {
	s.hub.Broadcast(msg)
}

// ClientCount returns the number of connected feed clients
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// checkOrigin validates the websocket origin against the whitelist
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		s.logger.Warn("Rejected websocket connection with missing Origin header", "remote_addr", r.RemoteAddr)
		requestsRejectedTotal.WithLabelValues("invalid_origin").Inc()
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		s.logger.Warn("Rejected websocket connection with invalid Origin", "origin", origin, "error", err)
		requestsRejectedTotal.WithLabelValues("invalid_origin").Inc()
		return false
	}
	normalized := parsed.Scheme + "://" + parsed.Host

	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" {
			if s.opts.Production {
				s.logger.Warn("Rejected wildcard origin in production mode", "origin", origin)
				requestsRejectedTotal.WithLabelValues("invalid_origin").Inc()
				return false
			}
			return true
		}
		if normalized == allowed {
			return true
		}
	}

	s.logger.Warn("Rejected websocket connection from unauthorized origin",
		"origin", origin,
		"remote_addr", r.RemoteAddr)
	requestsRejectedTotal.WithLabelValues("invalid_origin").Inc()
	return false
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.RateLimit > 0 {
			ip := remoteIP(r)
			if !s.limiter(ip).Allow() {
				s.logger.Warn("IP rate limit exceeded", "ip", ip, "path", r.URL.Path)
				requestsRejectedTotal.WithLabelValues("rate_limit").Inc()
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case s.connSemaphore <- struct{}{}:
		websocketActiveConnections.Inc()
		defer func() {
			<-s.connSemaphore
			websocketActiveConnections.Dec()
		}()
	default:
		s.logger.Warn("Max connections reached")
		requestsRejectedTotal.WithLabelValues("connection_limit").Inc()
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := NewClient(uuid.NewString())
	s.hub.Register(client)
	s.logger.Info("Feed client connected", "client_id", client.id, "remote_addr", r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writePump(conn, client)
	}()
	go func() {
		defer wg.Done()
		s.readPump(conn, client)
	}()
	wg.Wait()

	s.logger.Info("Feed client disconnected", "client_id", client.id)
}

// writePump forwards hub messages and keeps the connection alive with pings
func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks readPump
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.GetSendChan():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Warn("Write error", "client_id", client.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames; the feed is server-to-client only
func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer s.hub.Unregister(client)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Read error", "client_id", client.id, "error", err)
			}
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.health
	s.mu.Unlock()
	if h != nil {
		h.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Unix(),
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) limiter(ip string) *rate.Limiter {
	if val, ok := s.ipLimiters.Load(ip); ok {
		return val.(*rate.Limiter)
	}
	actual, _ := s.ipLimiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst))
	return actual.(*rate.Limiter)
}
