// Package bus provides an in-process implementation of anecdote.Broker.
// A single dispatch goroutine delivers every event, so subscribers always
// run on one fixed consumer goroutine regardless of which goroutine
// published. The broker is constructed explicitly and passed to the
// components that need it; there is no package-level instance.
package bus

import (
	"sync"

	"github.com/lazercorn/anecdote"
)

// DefaultBuffer is the default capacity of the pending event queue.
const DefaultBuffer = 64

// Ensure Broker implements anecdote.Broker at compile time.
var _ anecdote.Broker = (*Broker)(nil)

// Broker routes published events to topic subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]anecdote.Handler

	events chan anecdote.Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the capacity of the pending event queue.
// Defaults to DefaultBuffer if not specified.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		b.events = make(chan anecdote.Event, n)
	}
}

// New creates a Broker and starts its dispatch goroutine.
func New(opts ...Option) *Broker {
	b := &Broker{
		subs:   make(map[string][]anecdote.Handler),
		events: make(chan anecdote.Event, DefaultBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish enqueues an event for delivery. It may be called from any
// goroutine and blocks only when the pending queue is full, so events from
// a single producer are delivered in publish order and are never dropped.
// Publishing after Close discards the event.
func (b *Broker) Publish(event anecdote.Event) {
	select {
	case <-b.done:
	case b.events <- event:
	}
}

// Subscribe registers a handler for a topic. Handlers run on the broker's
// dispatch goroutine and must not block for long: a stalled handler stalls
// delivery for every subscriber.
func (b *Broker) Subscribe(topic string, fn anecdote.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Close stops the dispatch goroutine after delivering events already
// queued. It is safe to call more than once.
func (b *Broker) Close() {
	b.closed.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

func (b *Broker) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.events:
			b.deliver(event)
		case <-b.done:
			// Drain what was queued before the close.
			for {
				select {
				case event := <-b.events:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Broker) deliver(event anecdote.Event) {
	b.mu.RLock()
	handlers := make([]anecdote.Handler, len(b.subs[event.Topic()]))
	copy(handlers, b.subs[event.Topic()])
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
