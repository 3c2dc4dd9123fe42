package anecdote

import (
	"net/url"
	"strconv"
	"strings"
)

// Placeholders recognized in a Site's URLTemplate. The page placeholder is
// replaced with the target page number, the token placeholder with the
// continuation token stored for that page (empty when none is known).
const (
	PagePlaceholder  = "{page}"
	TokenPlaceholder = "{token}"
)

// Site describes how to fetch and parse one source's paginated listing.
// A Site is immutable after construction and shared read-only by every
// request made against it.
type Site struct {
	ID           string
	Name         string
	URLTemplate  string
	ListSelector string
	ItemsPerPage int

	// ContentRule and URLRule produce the two required record fields from
	// each matched list element.
	ContentRule *FieldRule
	URLRule     *FieldRule

	// RichRule, when set, extracts an additional media payload per element.
	RichRule *RichRule

	// TokenRule, when set, is applied to the whole document (not per
	// element) and yields the continuation token for the next page.
	TokenRule *FieldRule
}

// Validate returns an error if the site contains invalid fields.
func (s *Site) Validate() error {
	if s.ID == "" {
		return Errorf(EINVALID, "site ID required")
	}
	if s.URLTemplate == "" {
		return Errorf(EINVALID, "site URL template required")
	}
	if s.ListSelector == "" {
		return Errorf(EINVALID, "site list selector required")
	}
	if s.ItemsPerPage <= 0 {
		return Errorf(EINVALID, "site items per page must be positive")
	}
	if s.ContentRule == nil || s.URLRule == nil {
		return Errorf(EINVALID, "site content and URL rules required")
	}
	return nil
}

// PageForOffset resolves a consumer's item offset to the page number that
// contains it: 1 + offset/itemsPerPage, never below 1.
func (s *Site) PageForOffset(offset int) int {
	page := 1
	if s.ItemsPerPage > 0 && offset > 0 {
		page += offset / s.ItemsPerPage
	}
	if page < 1 {
		page = 1
	}
	return page
}

// PageURL builds the request URL for a page by substituting the page number
// and continuation token into the URL template. An empty token substitutes
// to nothing, which is the valid state for page 1. Returns ECONFIG if the
// substituted result is not an absolute http(s) URL.
func (s *Site) PageURL(page int, token string) (string, error) {
	raw := strings.ReplaceAll(s.URLTemplate, PagePlaceholder, strconv.Itoa(page))
	raw = strings.ReplaceAll(raw, TokenPlaceholder, token)

	u, err := url.Parse(raw)
	if err != nil {
		return "", Errorf(ECONFIG, "site %s: malformed page URL %q: %v", s.ID, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", Errorf(ECONFIG, "site %s: page URL %q is not an absolute http(s) URL", s.ID, raw)
	}
	return u.String(), nil
}

// FieldRule describes how to pull one value out of a matched list element.
// Rules are pure data: applying one never mutates the rule or the element,
// so a single rule instance serves every element of every page.
type FieldRule struct {
	// Selector narrows the match within the element. Empty means the
	// element itself.
	Selector string

	// Attr names the attribute to read. Empty means the element text.
	Attr string

	// Prefix is prepended to non-empty values (e.g. to absolutize URLs).
	Prefix string

	// Replacements are literal substitutions applied in order.
	Replacements []Replacement

	// UsePrev evaluates the rule against the previously matched list
	// element instead of the current one, for sources that split one
	// logical record across sibling elements. The first element has no
	// predecessor and yields an empty value.
	UsePrev bool
}

// Replacement is a literal text substitution.
type Replacement struct {
	Old string
	New string
}

// RichKind identifies the media type of a rich content payload.
type RichKind string

// RichKind values.
const (
	RichImage RichKind = "image"
	RichVideo RichKind = "video"
	RichText  RichKind = "text"
)

// RichRule extracts an additional media payload from a matched element.
type RichRule struct {
	FieldRule
	Kind RichKind
}
