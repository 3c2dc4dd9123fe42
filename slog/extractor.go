package slog

import (
	"log/slog"
	"time"

	"github.com/lazercorn/anecdote"
)

// Ensure LoggingExtractor implements anecdote.Extractor.
var _ anecdote.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with debug logging.
type LoggingExtractor struct {
	next   anecdote.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next anecdote.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract logs the extraction outcome and delegates to the wrapped
// extractor.
func (e *LoggingExtractor) Extract(html string, site *anecdote.Site) (result *anecdote.ExtractResult, err error) {
	defer func(begin time.Time) {
		count := 0
		end := false
		if result != nil {
			count = len(result.Records)
			end = result.End
		}
		e.logger.Info("extract",
			"site", site.ID,
			"records", count,
			"end", end,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Extract(html, site)
}
