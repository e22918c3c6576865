package engine

import (
	"sync/atomic"

	"github.com/ovrk/shiftwatch/internal/status"
)

type eventKind int

const (
	eventState eventKind = iota
	eventLog
	eventProjects
	eventSeconds
	eventAuth
)

// Subscription is an opaque handle for removing a listener.
type Subscription struct {
	kind eventKind
	id   uint64
}

// observers is the listener registry. It is only read or mutated on the
// engine loop; the id counter is atomic so handles can be handed out
// synchronously from any goroutine.
type observers struct {
	nextID uint64

	state    map[uint64]func(TrackerState)
	log      map[uint64]func(string)
	projects map[uint64]func([]status.Project)
	seconds  map[uint64]func(int64)
	auth     map[uint64]func(bool)
}

func newObservers() *observers {
	return &observers{
		state:    make(map[uint64]func(TrackerState)),
		log:      make(map[uint64]func(string)),
		projects: make(map[uint64]func([]status.Project)),
		seconds:  make(map[uint64]func(int64)),
		auth:     make(map[uint64]func(bool)),
	}
}

func (o *observers) allocate(kind eventKind) Subscription {
	return Subscription{kind: kind, id: atomic.AddUint64(&o.nextID, 1)}
}

func (o *observers) remove(sub Subscription) {
	switch sub.kind {
	case eventState:
		delete(o.state, sub.id)
	case eventLog:
		delete(o.log, sub.id)
	case eventProjects:
		delete(o.projects, sub.id)
	case eventSeconds:
		delete(o.seconds, sub.id)
	case eventAuth:
		delete(o.auth, sub.id)
	}
}

// OnStateChange registers a tracker-state listener. The current state is
// delivered immediately, then every change.
func (e *Engine) OnStateChange(fn func(TrackerState)) Subscription {
	sub := e.obs.allocate(eventState)
	e.loop.post(func() {
		e.obs.state[sub.id] = fn
		fn(e.state)
	})
	return sub
}

// OnLogLine registers a log listener. The buffered log is replayed first.
func (e *Engine) OnLogLine(fn func(string)) Subscription {
	sub := e.obs.allocate(eventLog)
	e.loop.post(func() {
		e.obs.log[sub.id] = fn
		for _, line := range e.logBuf {
			fn(line)
		}
	})
	return sub
}

// OnProjectsChange registers a project-list listener.
func (e *Engine) OnProjectsChange(fn func([]status.Project)) Subscription {
	sub := e.obs.allocate(eventProjects)
	e.loop.post(func() {
		e.obs.projects[sub.id] = fn
		fn(e.projects)
	})
	return sub
}

// OnTotalSecondsChange registers a listener for the seconds-tracked-today value.
func (e *Engine) OnTotalSecondsChange(fn func(int64)) Subscription {
	sub := e.obs.allocate(eventSeconds)
	e.loop.post(func() {
		e.obs.seconds[sub.id] = fn
		fn(e.totalSeconds)
	})
	return sub
}

// OnAuthChange registers a signed-in/signed-out listener.
func (e *Engine) OnAuthChange(fn func(bool)) Subscription {
	sub := e.obs.allocate(eventAuth)
	e.loop.post(func() {
		e.obs.auth[sub.id] = fn
		fn(e.loginEnabled)
	})
	return sub
}

// Unsubscribe removes a listener. Safe to call with an already-removed handle.
func (e *Engine) Unsubscribe(sub Subscription) {
	e.loop.post(func() { e.obs.remove(sub) })
}

func (e *Engine) notifyState() {
	for _, fn := range e.obs.state {
		fn(e.state)
	}
}

func (e *Engine) notifyProjects() {
	for _, fn := range e.obs.projects {
		fn(e.projects)
	}
}

func (e *Engine) notifySeconds() {
	for _, fn := range e.obs.seconds {
		fn(e.totalSeconds)
	}
}

func (e *Engine) notifyAuth() {
	for _, fn := range e.obs.auth {
		fn(e.loginEnabled)
	}
}
