package room

// event is the closed set of inputs a room processes, one at a time.
type event interface {
	kind() string
}

type connectEvent struct {
	conn Conn
}

type messageEvent struct {
	connID string
	raw    []byte
}

type disconnectEvent struct {
	connID string
}

type tickEvent struct {
	gen uint64
}

type inspectEvent struct {
	reply chan Snapshot
}

func (connectEvent) kind() string    { return "connect" }
func (messageEvent) kind() string    { return "message" }
func (disconnectEvent) kind() string { return "disconnect" }
func (tickEvent) kind() string       { return "tick" }
func (inspectEvent) kind() string    { return "inspect" }
