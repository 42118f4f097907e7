package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/blockroom/config"
	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/monitor"
	"github.com/wfunc/blockroom/room"
	"github.com/wfunc/blockroom/services"
	"github.com/wfunc/blockroom/session"
)

// GameServer accepts HTTP and WebSocket traffic and hands connections to rooms.
type GameServer struct {
	cfg            config.ServerConfig
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	roomService    *services.RoomService
	monitor        *monitor.Monitor
	router         chi.Router
}

func NewGameServer(cfg config.ServerConfig, rooms *room.Manager, roomService *services.RoomService, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    rooms,
		sessionManager: session.NewManager(),
		roomService:    roomService,
		monitor:        mon,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *GameServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Post("/api/rooms", s.createRoom)
	r.Get("/api/rooms", s.listRooms)
	r.Get("/api/rooms/{roomID}", s.getRoom)
	r.Get("/ws/{roomID}", s.handleWebSocket)
	r.Get("/game/{roomID}", s.handleWebSocket)

	if s.monitor != nil {
		r.Method(http.MethodGet, "/metrics", s.monitor.Handler())
		r.Method(http.MethodGet, "/debug/vars", s.monitor.VarsHandler())
	}
	return r
}

// Handler returns the routed HTTP handler.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

// Sessions exposes the live session registry.
func (s *GameServer) Sessions() *session.Manager {
	return s.sessionManager
}

// checkOrigin allows every origin unless an allow-list is configured.
func (s *GameServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// closes every session and shuts the listener down.
func (s *GameServer) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grace := s.cfg.ShutdownGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		logger.Log.Infof("Shutting down game server, %d sessions open", s.sessionManager.Count())
		s.sessionManager.CloseAll()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
