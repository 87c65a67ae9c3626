// Package server exposes stored results over HTTP and hosts typing sessions
// over WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/session"
	"github.com/verte-zerg/typetest/internal/sink"
	"github.com/verte-zerg/typetest/internal/store"
)

// Options configures a Server.
type Options struct {
	Store  *store.Store
	Log    *zap.Logger
	APIKey string
	// Words feeds sessions hosted over WebSocket.
	Words session.WordSource
	// Dispatcher persists results of hosted sessions. Nil saves directly to Store.
	Dispatcher *sink.Dispatcher
	// TickInterval overrides the session refresh interval.
	TickInterval time.Duration
}

// Server is the HTTP front of the result store.
type Server struct {
	store      *store.Store
	log        *zap.Logger
	apiKey     string
	words      session.WordSource
	dispatcher *sink.Dispatcher
	tick       time.Duration
	upgrader   websocket.Upgrader
	engine     *gin.Engine

	connMu   sync.Mutex
	conns    map[*websocket.Conn]struct{}
	draining bool
	sessions sync.WaitGroup
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = sink.NewDispatcher(log, 10*time.Second, sink.StoreSink{Store: opts.Store})
	}
	tick := opts.TickInterval
	if tick == 0 {
		tick = session.DefaultTickInterval
	}
	s := &Server{
		store:      opts.Store,
		log:        log,
		apiKey:     opts.APIKey,
		words:      opts.Words,
		dispatcher: dispatcher,
		tick:       tick,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]struct{}{},
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	api.GET("/results", s.listResults)
	api.POST("/results", s.requireAPIKey(), s.postResult)
	api.GET("/leaderboard", s.leaderboard)
	api.GET("/top", s.topPerformers)
	api.GET("/users/:username/stats", s.userStats)

	if s.words != nil {
		router.GET("/ws/test", s.serveTest)
	}
	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains for up to five
// seconds, closes hosted sessions and waits for pending result saves.
// Tests still running on a closed session are dropped.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeSessions()
	s.dispatcher.Wait()
	s.log.Info("server stopped")
	if err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// trackConn registers a hijacked connection. It reports false once the
// server is draining.
func (s *Server) trackConn(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.draining {
		return false
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	s.sessions.Done()
}

// closeSessions closes every hosted connection and returns once their
// handlers have exited. No session dispatches a result afterwards.
func (s *Server) closeSessions() {
	s.connMu.Lock()
	s.draining = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		if cerr := conn.Close(); cerr != nil {
			s.log.Debug("failed to close websocket", zap.Error(cerr))
		}
	}
	s.connMu.Unlock()
	s.sessions.Wait()
}
