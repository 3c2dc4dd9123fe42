package mock

import (
	"context"

	"github.com/lazercorn/anecdote"
)

var _ anecdote.Transport = (*Transport)(nil)

// Transport is a mock implementation of anecdote.Transport.
type Transport struct {
	SendFn  func(ctx context.Context, url string) (*anecdote.Response, error)
	CloseFn func() error
}

func (t *Transport) Send(ctx context.Context, url string) (*anecdote.Response, error) {
	return t.SendFn(ctx, url)
}

func (t *Transport) Close() error {
	if t.CloseFn == nil {
		return nil
	}
	return t.CloseFn()
}
