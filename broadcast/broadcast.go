// broadcast/broadcast.go
package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/room"
)

// RoomBroadcaster fans a payload out to a room's connections. Each delivery is
// independent: a failed send is counted and reported back to the room, and
// the loop moves on to the next connection.
type RoomBroadcaster struct {
	sent     prometheus.Counter
	failures prometheus.Counter
}

// NewRoomBroadcaster creates a broadcaster. Either counter may be nil.
func NewRoomBroadcaster(sent, failures prometheus.Counter) *RoomBroadcaster {
	return &RoomBroadcaster{sent: sent, failures: failures}
}

func (b *RoomBroadcaster) Broadcast(roomID string, conns []room.Conn, data []byte) []room.Conn {
	var failed []room.Conn
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			logger.Log.Warnf("broadcast to %s in room %s failed: %v", c.GetID(), roomID, err)
			if b.failures != nil {
				b.failures.Inc()
			}
			failed = append(failed, c)
			continue
		}
		if b.sent != nil {
			b.sent.Inc()
		}
	}
	return failed
}
