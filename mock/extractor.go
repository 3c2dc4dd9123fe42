package mock

import "github.com/lazercorn/anecdote"

var _ anecdote.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of anecdote.Extractor.
type Extractor struct {
	ExtractFn func(html string, site *anecdote.Site) (*anecdote.ExtractResult, error)
}

func (e *Extractor) Extract(html string, site *anecdote.Site) (*anecdote.ExtractResult, error) {
	return e.ExtractFn(html, site)
}
