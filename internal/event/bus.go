package event

import "sync"

type Handler func(payload interface{})

// Bus fans events out to subscribers, each on its own goroutine.
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	inflight sync.WaitGroup
	closed   bool
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *Bus) Publish(event string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	if hs, ok := b.handlers[event]; ok {
		for _, h := range hs {
			b.inflight.Add(1)
			go func(h Handler) {
				defer b.inflight.Done()
				h(payload)
			}(h)
		}
	}
}

// Close stops delivery; events published afterwards are dropped. Handlers
// already started keep running until Wait returns.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}

// Wait blocks until every handler started so far has returned. Call Close
// first when draining, so no Publish can add work while Wait runs.
func (b *Bus) Wait() {
	b.inflight.Wait()
}
