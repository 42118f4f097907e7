package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/models"
	"github.com/wfunc/blockroom/services"
)

// roomView is a directory entry plus what the live room reports, if running.
type roomView struct {
	models.RoomInfo
	Live    bool   `json:"live"`
	Status  string `json:"status,omitempty"`
	Players int    `json:"players"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *GameServer) createRoom(w http.ResponseWriter, r *http.Request) {
	info, err := s.roomService.Create(r.Context())
	if err != nil {
		logger.Log.Errorf("create room: %v", err)
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *GameServer) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	info, err := s.roomService.Lookup(r.Context(), roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.Errorf("lookup room %s: %v", roomID, err)
		http.Error(w, "failed to look up room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), info))
}

func (s *GameServer) listRooms(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.roomService.List(r.Context(), limit)
	if err != nil {
		logger.Log.Errorf("list rooms: %v", err)
		http.Error(w, "failed to list rooms", http.StatusInternalServerError)
		return
	}

	views := make([]roomView, 0, len(list))
	for _, info := range list {
		views = append(views, s.view(r.Context(), info))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *GameServer) view(ctx context.Context, info models.RoomInfo) roomView {
	v := roomView{RoomInfo: info}
	rm, ok := s.roomManager.GetRoom(info.RoomID)
	if !ok {
		return v
	}
	snap, err := rm.Inspect(ctx)
	if err != nil {
		return v
	}
	v.Live = true
	v.Status = string(snap.Status)
	v.Players = len(snap.Players)
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
