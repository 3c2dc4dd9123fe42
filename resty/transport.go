// Package resty implements anecdote.Transport on top of the resty HTTP
// client. Requests identify themselves with a configurable User-Agent and
// run worker-side: response handling happens on the transport's goroutine,
// never on the consumer's.
package resty

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lazercorn/anecdote"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent identifies the fetcher to source sites.
const DefaultUserAgent = "anecdote/1.0 (+https://github.com/lazercorn/anecdote)"

// Ensure Transport implements anecdote.Transport at compile time.
var _ anecdote.Transport = (*Transport)(nil)

// Transport fetches listing pages over HTTP.
type Transport struct {
	client    *resty.Client
	userAgent string
	timeout   time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithUserAgent sets the User-Agent header sent with every request.
// Defaults to DefaultUserAgent if not specified.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
// Defaults to DefaultTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// NewTransport creates a new HTTP transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	client := resty.New()
	client.SetTimeout(t.timeout)
	client.SetHeader("User-Agent", t.userAgent)
	t.client = client

	return t
}

// Send performs a GET request against url. A non-2xx status is returned
// as a Response for the caller to classify; only transport-level failures
// (connection, timeout, cancellation) return an error.
func (t *Transport) Send(ctx context.Context, url string) (*anecdote.Response, error) {
	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, anecdote.Errorf(anecdote.ENETWORK, "get %s: %v", url, err)
	}
	return &anecdote.Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}

// Close releases transport resources. The underlying HTTP client needs no
// explicit cleanup.
func (t *Transport) Close() error {
	return nil
}
