// Package events implements the default obfsrelay.EventStream: a set of
// per-CPU worker goroutines, each driven by a channel, with events for the
// same connection always routed to the same worker by hashing the stream
// id. This keeps per-connection event ordering (e.g. EventStart before
// EventFinish) without a lock.
package events

import (
	"context"
	"runtime"

	"github.com/OneOfOne/xxhash"

	"github.com/obfs2relay/obfs2relay/obfsrelay"
)

// Observer reacts to events. The stream calls the method matching each
// event's concrete type; events of any other type are dropped.
type Observer interface {
	EventStart(obfsrelay.EventStart)
	EventConnectedToDC(obfsrelay.EventConnectedToDC)
	EventTraffic(obfsrelay.EventTraffic)
	EventFinish(obfsrelay.EventFinish)
	EventHandshakeRejected(obfsrelay.EventHandshakeRejected)
	Shutdown()
}

// ObserverFactory builds one Observer per worker goroutine, so observers
// that are not safe for concurrent use (e.g. a map without a lock) can
// still be used, each confined to its own goroutine.
type ObserverFactory func() Observer

// Stream is the default EventStream implementation.
type Stream struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	chans     []chan obfsrelay.Event
}

// New builds a Stream with one worker goroutine per CPU, each with its own
// Observer built from every factory. If no factories are given, events are
// simply discarded.
func New(factories ...ObserverFactory) *Stream {
	if len(factories) == 0 {
		factories = []ObserverFactory{func() Observer { return noopObserver{} }}
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := runtime.NumCPU()
	s := &Stream{
		ctx:       ctx,
		ctxCancel: cancel,
		chans:     make([]chan obfsrelay.Event, n),
	}

	for i := 0; i < n; i++ {
		s.chans[i] = make(chan obfsrelay.Event, 64)

		var obs Observer
		if len(factories) == 1 {
			obs = factories[0]()
		} else {
			obs = multiObserver{observers: buildAll(factories)}
		}

		go worker(ctx, s.chans[i], obs)
	}

	return s
}

func buildAll(factories []ObserverFactory) []Observer {
	out := make([]Observer, len(factories))
	for i, f := range factories {
		out[i] = f()
	}

	return out
}

// Send routes evt to the worker owning its stream id, non-blocking once
// the stream has been shut down.
func (s *Stream) Send(evt obfsrelay.Event) {
	var chanNo uint32

	if id := evt.StreamID(); id != "" {
		chanNo = xxhash.ChecksumString32(id)
	}

	ch := s.chans[int(chanNo)%len(s.chans)]

	select {
	case <-s.ctx.Done():
	case ch <- evt:
	}
}

// Shutdown stops every worker goroutine.
func (s *Stream) Shutdown() {
	s.ctxCancel()
}

func worker(ctx context.Context, ch <-chan obfsrelay.Event, obs Observer) {
	defer obs.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			dispatch(obs, evt)
		}
	}
}

func dispatch(obs Observer, evt obfsrelay.Event) {
	switch typed := evt.(type) {
	case obfsrelay.EventStart:
		obs.EventStart(typed)
	case obfsrelay.EventConnectedToDC:
		obs.EventConnectedToDC(typed)
	case obfsrelay.EventTraffic:
		obs.EventTraffic(typed)
	case obfsrelay.EventFinish:
		obs.EventFinish(typed)
	case obfsrelay.EventHandshakeRejected:
		obs.EventHandshakeRejected(typed)
	}
}

type multiObserver struct {
	observers []Observer
}

func (m multiObserver) EventStart(e obfsrelay.EventStart) {
	for _, o := range m.observers {
		o.EventStart(e)
	}
}

func (m multiObserver) EventConnectedToDC(e obfsrelay.EventConnectedToDC) {
	for _, o := range m.observers {
		o.EventConnectedToDC(e)
	}
}

func (m multiObserver) EventTraffic(e obfsrelay.EventTraffic) {
	for _, o := range m.observers {
		o.EventTraffic(e)
	}
}

func (m multiObserver) EventFinish(e obfsrelay.EventFinish) {
	for _, o := range m.observers {
		o.EventFinish(e)
	}
}

func (m multiObserver) EventHandshakeRejected(e obfsrelay.EventHandshakeRejected) {
	for _, o := range m.observers {
		o.EventHandshakeRejected(e)
	}
}

func (m multiObserver) Shutdown() {
	for _, o := range m.observers {
		o.Shutdown()
	}
}

type noopObserver struct{}

func (noopObserver) EventStart(obfsrelay.EventStart)                         {}
func (noopObserver) EventConnectedToDC(obfsrelay.EventConnectedToDC)         {}
func (noopObserver) EventTraffic(obfsrelay.EventTraffic)                     {}
func (noopObserver) EventFinish(obfsrelay.EventFinish)                       {}
func (noopObserver) EventHandshakeRejected(obfsrelay.EventHandshakeRejected) {}
func (noopObserver) Shutdown()                                              {}

var _ obfsrelay.EventStream = (*Stream)(nil)
