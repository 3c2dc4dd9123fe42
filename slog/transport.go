// Package slog provides logging decorators for anecdote interfaces.
// Decorators wrap an implementation and log each call with structured
// attributes, keeping the wrapped code free of logging concerns.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/lazercorn/anecdote"
)

// Ensure LoggingTransport implements anecdote.Transport.
var _ anecdote.Transport = (*LoggingTransport)(nil)

// LoggingTransport wraps a Transport with debug logging.
type LoggingTransport struct {
	next   anecdote.Transport
	logger *slog.Logger
}

// NewLoggingTransport creates a new LoggingTransport.
func NewLoggingTransport(next anecdote.Transport, logger *slog.Logger) *LoggingTransport {
	return &LoggingTransport{next: next, logger: logger}
}

// Send logs the request URL, status and duration, and delegates to the
// wrapped transport.
func (t *LoggingTransport) Send(ctx context.Context, url string) (resp *anecdote.Response, err error) {
	defer func(begin time.Time) {
		status := 0
		size := 0
		if resp != nil {
			status = resp.StatusCode
			size = len(resp.Body)
		}
		t.logger.Info("send",
			"url", url,
			"status", status,
			"bytes", size,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Send(ctx, url)
}

// Close delegates to the wrapped transport.
func (t *LoggingTransport) Close() error {
	return t.next.Close()
}
