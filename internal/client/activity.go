package client

import "sync"

// ActivityCounter is an observable count of in-flight authority calls, used
// by UI layers to drive a busy indicator.
type ActivityCounter struct {
	mu    sync.Mutex
	count int
	subs  map[int]func(int)
	next  int
}

// Activity is the process-wide counter. It resets only with the process.
var Activity = &ActivityCounter{}

// Begin marks one call as started.
func (a *ActivityCounter) Begin() { a.add(1) }

// End marks one call as finished.
func (a *ActivityCounter) End() { a.add(-1) }

func (a *ActivityCounter) add(delta int) {
	a.mu.Lock()
	a.count += delta
	if a.count < 0 {
		a.count = 0
	}
	count := a.count
	subs := make([]func(int), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()
	for _, fn := range subs {
		fn(count)
	}
}

// Active returns the current in-flight count.
func (a *ActivityCounter) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Subscribe registers a listener for count changes and returns its removal
// func. The listener runs on whichever goroutine changes the count.
func (a *ActivityCounter) Subscribe(fn func(int)) func() {
	a.mu.Lock()
	if a.subs == nil {
		a.subs = map[int]func(int){}
	}
	id := a.next
	a.next++
	a.subs[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}
