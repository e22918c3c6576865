package engine

import "sync"

// loop is the engine's designated execution context: a single goroutine
// draining a task queue. Every piece of engine state is touched only from
// tasks running here, so mutations never interleave.
type loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newLoop() *loop {
	l := &loop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// post schedules fn on the loop. Posts against a stopped loop are dropped.
func (l *loop) post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// sync runs fn on the loop and waits for it to finish.
func (l *loop) sync(fn func()) {
	ch := make(chan struct{})
	l.post(func() {
		fn()
		close(ch)
	})
	select {
	case <-ch:
	case <-l.done:
	}
}

// stop shuts the loop down and waits for the goroutine to exit. Queued tasks
// that have not started are discarded.
func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}
