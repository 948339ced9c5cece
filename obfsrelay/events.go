package obfsrelay

import (
	"net"
	"time"
)

// Event is something a Proxy wants to tell the outside world: a stream
// started or finished, traffic moved, a handshake was rejected. Consumers
// (a stats exporter, a logger) type-switch on the concrete event.
type Event interface {
	StreamID() string
	Timestamp() time.Time
}

type eventBase struct {
	streamID  string
	timestamp time.Time
}

func (e eventBase) StreamID() string     { return e.streamID }
func (e eventBase) Timestamp() time.Time { return e.timestamp }

func newEventBase(streamID string) eventBase {
	return eventBase{streamID: streamID, timestamp: time.Now()}
}

// EventStart is emitted once a client connection has been accepted, before
// the handshake runs.
type EventStart struct {
	eventBase

	RemoteIP net.IP
}

// NewEventStart builds an EventStart.
func NewEventStart(streamID string, remoteIP net.IP) EventStart {
	return EventStart{eventBase: newEventBase(streamID), RemoteIP: remoteIP}
}

// EventConnectedToDC is emitted once the upstream handshake to a Telegram
// datacenter has completed.
type EventConnectedToDC struct {
	eventBase

	User     string
	RemoteIP net.IP
	DC       int
}

// NewEventConnectedToDC builds an EventConnectedToDC.
func NewEventConnectedToDC(streamID, user string, remoteIP net.IP, dc int) EventConnectedToDC {
	return EventConnectedToDC{eventBase: newEventBase(streamID), User: user, RemoteIP: remoteIP, DC: dc}
}

// EventTraffic is emitted as bytes are relayed. Traffic is the number of
// bytes, User identifies whose stats they were booked against, IsRead
// distinguishes the client->upstream leg from upstream->client.
type EventTraffic struct {
	eventBase

	User    string
	Traffic uint
	IsRead  bool
}

// NewEventTraffic builds an EventTraffic.
func NewEventTraffic(streamID, user string, traffic uint, isRead bool) EventTraffic {
	return EventTraffic{eventBase: newEventBase(streamID), User: user, Traffic: traffic, IsRead: isRead}
}

// EventFinish is emitted when a connection has been fully torn down (both
// pumps have returned).
type EventFinish struct {
	eventBase

	User string
}

// NewEventFinish builds an EventFinish.
func NewEventFinish(streamID, user string) EventFinish {
	return EventFinish{eventBase: newEventBase(streamID), User: user}
}

// EventHandshakeRejected is emitted when no configured user's secret
// authenticates a client's preamble.
type EventHandshakeRejected struct {
	eventBase

	RemoteIP net.IP
}

// NewEventHandshakeRejected builds an EventHandshakeRejected.
func NewEventHandshakeRejected(streamID string, remoteIP net.IP) EventHandshakeRejected {
	return EventHandshakeRejected{eventBase: newEventBase(streamID), RemoteIP: remoteIP}
}

// EventStream routes events to observers. The default implementation lives
// in the top-level events package; Proxy only depends on this interface.
type EventStream interface {
	Send(evt Event)
	Shutdown()
}

// NoopEventStream discards every event. It is the default when no
// EventStream is configured.
type NoopEventStream struct{}

func (NoopEventStream) Send(Event) {}
func (NoopEventStream) Shutdown()  {}
