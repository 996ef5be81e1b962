package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotRendered is returned when a structural condition is evaluated against
// content that came from a plain (non-rendering) fetch.
var ErrNotRendered = errors.New("structural condition requires a rendered page")

// Page is fetched content plus, for rendered fetches, a DOM snapshot.
type Page struct {
	Content string
	doc     *goquery.Document
}

// NewTextPage wraps plain fetched text. Structural queries are unavailable.
func NewTextPage(content string) Page {
	return Page{Content: content}
}

// NewRenderedPage wraps HTML serialized from a rendered browser page.
func NewRenderedPage(html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse rendered HTML: %w", err)
	}
	return Page{Content: html, doc: doc}, nil
}

// Rendered reports whether structural queries are available.
func (p Page) Rendered() bool {
	return p.doc != nil
}

// Count returns how many elements match selector in the DOM snapshot.
func (p Page) Count(selector string) (int, error) {
	if p.doc == nil {
		return 0, ErrNotRendered
	}
	if err := ValidateSelector(selector); err != nil {
		return 0, err
	}
	return p.doc.Find(selector).Length(), nil
}
