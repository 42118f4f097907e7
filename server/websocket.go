package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/network"
	"github.com/wfunc/blockroom/room"
	"github.com/wfunc/blockroom/services"
	"github.com/wfunc/blockroom/session"
)

// handleWebSocket resolves the room before upgrading, so unknown or invalid
// rooms get a plain HTTP error.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	info, err := s.roomService.Resolve(r.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRoomID):
			http.Error(w, "invalid room id", http.StatusBadRequest)
		case errors.Is(err, services.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		default:
			logger.Log.Errorf("resolve room %s: %v", roomID, err)
			http.Error(w, "failed to resolve room", http.StatusInternalServerError)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(r.Context(), roomID, room.Mode(info.Mode), conn)
}

func (s *GameServer) handleConnection(ctx context.Context, roomID string, mode room.Mode, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	if s.cfg.Heartbeat > 0 {
		wsConn.SetHeartbeat(s.cfg.Heartbeat)
	}
	sess := session.NewSession(uuid.NewString(), wsConn, s.cfg.SendBuffer)
	sess.RoomID = roomID
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.ConnectionOpened()
	}

	rm := s.roomManager.AcquireMode(roomID, mode)
	logger.Log.Infof("New connection from %s, session ID: %s, room: %s", wsConn.RemoteAddr(), sess.GetID(), roomID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		if err := rm.Disconnect(sess.GetID()); err != nil {
			logger.Log.Debugf("disconnect %s: %v", sess.GetID(), err)
		}
		s.roomManager.Release(roomID)
		s.sessionManager.Remove(sess.GetID())
		sess.Close()
		if s.monitor != nil {
			s.monitor.ConnectionClosed()
		}
		s.roomService.Touch(context.Background(), roomID, time.Now())
	}()

	go func() {
		if err := sess.WritePump(s.cfg.Heartbeat); err != nil {
			logger.Log.Debugf("write pump %s: %v", sess.GetID(), err)
			sess.Close()
		}
	}()

	if err := rm.Connect(ctx, sess); err != nil {
		return
	}

	for {
		data, err := wsConn.ReadMessage()
		if err != nil {
			if network.IsUnexpectedClose(err) {
				logger.Log.Warnf("session %s read error: %v", sess.GetID(), err)
			}
			return
		}
		sess.Touch()
		if s.monitor != nil {
			s.monitor.IncMessagesReceived()
		}
		if err := rm.Deliver(ctx, sess.GetID(), data); err != nil {
			return
		}
	}
}
