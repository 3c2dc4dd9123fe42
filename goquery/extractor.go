// Package goquery implements record extraction over CSS selectors using
// the PuerkitoBio/goquery document model. Selectors are compiled with
// cascadia up front so that malformed selector syntax surfaces as a typed
// configuration error instead of a panic deep inside a query.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/lazercorn/anecdote"
)

// Ensure Extractor implements anecdote.Extractor at compile time.
var _ anecdote.Extractor = (*Extractor)(nil)

// Extractor extracts records from listing pages according to a site's
// selector rules. It is stateless and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// compiledRule pairs a field rule with its pre-compiled selector matcher.
// Compiling once per page keeps rule application side-effect-free on the
// shared site descriptor.
type compiledRule struct {
	rule    *anecdote.FieldRule
	matcher cascadia.Selector // nil when the rule targets the element itself
}

func compileRule(site *anecdote.Site, rule *anecdote.FieldRule) (compiledRule, error) {
	cr := compiledRule{rule: rule}
	if rule.Selector == "" {
		return cr, nil
	}
	m, err := cascadia.Compile(rule.Selector)
	if err != nil {
		return cr, anecdote.Errorf(anecdote.ECONFIG, "site %s: invalid field selector %q: %v", site.ID, rule.Selector, err)
	}
	cr.matcher = m
	return cr, nil
}

// apply evaluates the rule against a matched list element. prev is the
// previously matched element, for rules that read from the preceding
// sibling; it is nil for the first element.
func (cr compiledRule) apply(sel, prev *goquery.Selection) string {
	target := sel
	if cr.rule.UsePrev {
		if prev == nil {
			return ""
		}
		target = prev
	}
	if cr.matcher != nil {
		target = target.FindMatcher(cr.matcher)
	}

	var value string
	if cr.rule.Attr != "" {
		value, _ = target.Attr(cr.rule.Attr)
	} else {
		value = strings.TrimSpace(target.Text())
	}
	for _, r := range cr.rule.Replacements {
		value = strings.ReplaceAll(value, r.Old, r.New)
	}
	if value != "" && cr.rule.Prefix != "" {
		value = cr.rule.Prefix + value
	}
	return value
}

// Extract parses the page HTML and applies the site's rules to every
// element matched by the list selector, in document order. Zero matches is
// the end-of-pagination signal, not an error. When the site defines a
// token rule it is applied to the whole document and the extracted token
// is returned for the pagination cursor to store.
func (e *Extractor) Extract(html string, site *anecdote.Site) (*anecdote.ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, anecdote.Errorf(anecdote.EINVALID, "site %s: failed to parse HTML: %v", site.ID, err)
	}

	listMatcher, err := cascadia.Compile(site.ListSelector)
	if err != nil {
		return nil, anecdote.Errorf(anecdote.ECONFIG, "site %s: invalid list selector %q: %v", site.ID, site.ListSelector, err)
	}

	contentRule, err := compileRule(site, site.ContentRule)
	if err != nil {
		return nil, err
	}
	urlRule, err := compileRule(site, site.URLRule)
	if err != nil {
		return nil, err
	}
	var richRule compiledRule
	if site.RichRule != nil {
		if richRule, err = compileRule(site, &site.RichRule.FieldRule); err != nil {
			return nil, err
		}
	}
	var tokenRule compiledRule
	if site.TokenRule != nil {
		if tokenRule, err = compileRule(site, site.TokenRule); err != nil {
			return nil, err
		}
	}

	matches := doc.FindMatcher(listMatcher)
	if matches.Length() == 0 {
		return &anecdote.ExtractResult{End: true}, nil
	}

	records := make([]anecdote.Record, 0, matches.Length())
	var prev *goquery.Selection
	matches.Each(func(_ int, sel *goquery.Selection) {
		record := anecdote.Record{
			Content: contentRule.apply(sel, prev),
			URL:     urlRule.apply(sel, prev),
		}
		if site.RichRule != nil {
			record.Rich = richContent(site.RichRule.Kind, richRule.apply(sel, prev))
		}
		records = append(records, record)
		prev = sel
	})

	result := &anecdote.ExtractResult{Records: records}
	if site.TokenRule != nil {
		result.NextPageToken = tokenRule.apply(doc.Selection, nil)
	}
	return result, nil
}

func richContent(kind anecdote.RichKind, value string) *anecdote.RichContent {
	if value == "" {
		return nil
	}
	if kind == anecdote.RichText {
		return &anecdote.RichContent{Kind: kind, Text: value}
	}
	return &anecdote.RichContent{Kind: kind, URL: value}
}
