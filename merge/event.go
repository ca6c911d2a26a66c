package merge

import "sync"

// readyEvent is the single-shot wait handle returned by NextEvent. Several
// peer callbacks may race to complete it; the sync.Once guarantees the
// channel is closed exactly once no matter who wins.
type readyEvent struct {
	ch   chan struct{}
	once sync.Once
}

func newReadyEvent() *readyEvent {
	return &readyEvent{ch: make(chan struct{})}
}

func (e *readyEvent) signal() {
	e.once.Do(func() { close(e.ch) })
}
