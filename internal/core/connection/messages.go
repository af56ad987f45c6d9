package connection

import "github.com/melih/lighthouse-console/internal/core/ports"

// Poster delivers a message to the owning loop's inbox.
type Poster func(msg any)

// DialResult reports the outcome of a dial started by Connect.
type DialResult struct {
	Gen  uint64
	Conn ports.PushConn
	Err  error
}

// PushReceived carries one event read from channel generation Gen.
type PushReceived struct {
	Gen   uint64
	Event ports.PushEvent
}

// ConnLost reports that channel generation Gen stopped delivering.
type ConnLost struct {
	Gen uint64
	Err error
}

// ReconnectDue fires when the scheduled reconnect delay has elapsed.
type ReconnectDue struct {
	Seq uint64
}

// PollTick is one tick of the fallback ticker generation Gen.
type PollTick struct {
	Gen uint64
}
