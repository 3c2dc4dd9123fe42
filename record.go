package anecdote

// Record is one structured item extracted from a listing page.
// Records are immutable once created.
type Record struct {
	Content string
	URL     string
	Rich    *RichContent
}

// RichContent is an optional media payload attached to a record.
type RichContent struct {
	Kind RichKind
	URL  string
	Text string
}

// ExtractResult holds the outcome of extracting one listing page.
type ExtractResult struct {
	// Records are the extracted items in document order.
	Records []Record

	// NextPageToken is the continuation token for the following page,
	// extracted from the document when the site defines a token rule.
	NextPageToken string

	// End reports that the page matched no list elements, which signals
	// the end of the site's pagination stream.
	End bool
}

// Extractor extracts records from a fetched listing page according to the
// site's selector rules.
type Extractor interface {
	// Extract parses the page HTML and applies the site's rules.
	// Zero list-selector matches is not an error: it returns an empty
	// result with End set. Invalid selector syntax returns ECONFIG.
	Extract(html string, site *Site) (*ExtractResult, error)
}
