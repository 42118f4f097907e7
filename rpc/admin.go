package rpc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/blockroom/models"
	"github.com/wfunc/blockroom/room"
)

// Rooms is the part of room.Manager the admin service reads.
type Rooms interface {
	List() []string
	GetRoom(id string) (*room.Room, bool)
}

// RoomAdmin exposes read-only inspection of live rooms over net/rpc.
// Methods follow the net/rpc shape: exported args, pointer reply, error.
type RoomAdmin struct {
	rooms   Rooms
	timeout time.Duration
}

func NewRoomAdmin(rooms Rooms, timeout time.Duration) *RoomAdmin {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RoomAdmin{rooms: rooms, timeout: timeout}
}

// ListRoomsArgs caps the reply at Limit rooms; zero means no cap.
type ListRoomsArgs struct {
	Limit int
}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

// ListRooms summarises every live room. Rooms that stop while being listed
// are skipped.
func (a *RoomAdmin) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, id := range a.rooms.List() {
		if args.Limit > 0 && len(reply.Rooms) >= args.Limit {
			break
		}
		r, ok := a.rooms.GetRoom(id)
		if !ok {
			continue
		}
		snap, err := a.inspect(r)
		if err != nil {
			continue
		}
		reply.Rooms = append(reply.Rooms, summarize(r, snap))
	}
	return nil
}

type InspectRoomArgs struct {
	RoomID string
}

type InspectRoomReply struct {
	Summary models.RoomSummary
	Players []room.Player
}

func (a *RoomAdmin) InspectRoom(args *InspectRoomArgs, reply *InspectRoomReply) error {
	r, ok := a.rooms.GetRoom(args.RoomID)
	if !ok {
		return fmt.Errorf("room %s is not running", args.RoomID)
	}
	snap, err := a.inspect(r)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", args.RoomID, err)
	}

	reply.Summary = summarize(r, snap)
	reply.Players = make([]room.Player, 0, len(snap.Players))
	for _, p := range snap.Players {
		reply.Players = append(reply.Players, p)
	}
	sort.Slice(reply.Players, func(i, j int) bool {
		return reply.Players[i].ID < reply.Players[j].ID
	})
	return nil
}

func (a *RoomAdmin) inspect(r *room.Room) (room.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return r.Inspect(ctx)
}

func summarize(r *room.Room, snap room.Snapshot) models.RoomSummary {
	return models.RoomSummary{
		RoomID:  r.ID(),
		Mode:    string(r.Mode()),
		Status:  string(snap.Status),
		Players: len(snap.Players),
		Version: snap.Version,
		Score:   snap.Score,
	}
}
