package room

import "time"

// Conn is one client connection as a room sees it.
type Conn interface {
	GetID() string
	Send(data []byte) error
	Close() error
}

// Broadcaster delivers one payload to many connections and returns the ones
// that failed. A failure on one connection must not stop delivery to the rest.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	Broadcast(roomID string, conns []Conn, data []byte) []Conn
}

// Recorder observes room activity for metrics.
type Recorder interface {
	EventHandled(kind string, elapsed time.Duration)
	PlayersChanged(delta int)
	RoomsChanged(count int)
}

type nopRecorder struct{}

func (nopRecorder) EventHandled(string, time.Duration) {}
func (nopRecorder) PlayersChanged(int)                 {}
func (nopRecorder) RoomsChanged(int)                   {}

// sendEach is the fallback broadcaster: a plain loop that collects failures.
type sendEach struct{}

func (sendEach) Broadcast(_ string, conns []Conn, data []byte) []Conn {
	var failed []Conn
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}
