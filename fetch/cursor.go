package fetch

// Cursor maps page numbers to the continuation token needed to request
// them. The entry for page N+1 is written only after page N was fetched
// and extracted successfully. Page 1 never has an entry; a lookup for any
// absent page falls back to "no token".
//
// Cursor is not safe for concurrent writers. The service's worker
// goroutine is its only writer.
type Cursor struct {
	tokens map[int]string
}

// NewCursor creates an empty cursor.
func NewCursor() *Cursor {
	return &Cursor{tokens: make(map[int]string)}
}

// Put stores the continuation token for a page.
func (c *Cursor) Put(page int, token string) {
	c.tokens[page] = token
}

// Get returns the token stored for a page, or "" and false when the page
// has none.
func (c *Cursor) Get(page int) (string, bool) {
	token, ok := c.tokens[page]
	return token, ok
}

// Len returns the number of stored tokens.
func (c *Cursor) Len() int {
	return len(c.tokens)
}
