package mock

import "github.com/lazercorn/anecdote"

var _ anecdote.Broker = (*Broker)(nil)

// Broker is a mock implementation of anecdote.Broker. Publish delivers
// synchronously on the caller's goroutine, which keeps tests deterministic.
type Broker struct {
	PublishFn   func(event anecdote.Event)
	SubscribeFn func(topic string, fn anecdote.Handler)
}

func (b *Broker) Publish(event anecdote.Event) {
	b.PublishFn(event)
}

func (b *Broker) Subscribe(topic string, fn anecdote.Handler) {
	if b.SubscribeFn == nil {
		return
	}
	b.SubscribeFn(topic, fn)
}
