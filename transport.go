package anecdote

import "context"

// Response is a raw transport response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports whether the response carries a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport issues page requests and delivers raw responses.
// Implementations identify themselves with a custom User-Agent header.
type Transport interface {
	// Send performs a GET request against url. A non-2xx status is not an
	// error at this level: the response is returned for the caller to
	// classify. Send returns an error only for transport-level failures
	// (connection, timeout, context cancellation).
	Send(ctx context.Context, url string) (*Response, error)

	// Close releases transport resources.
	Close() error
}
