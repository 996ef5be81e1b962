// Package condition decides whether a page counts as "available" and extracts
// what is available from it (reservation slots or products).
package condition

import (
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"
)

// Mode names a condition variant. The names match the keys of the sites file.
type Mode string

const (
	ModeTextContains            Mode = "textContains"
	ModeTextNotContains         Mode = "textNotContains"
	ModeMatchesPattern          Mode = "textMatchesRegex"
	ModeElementExists           Mode = "elementExists"
	ModeElementNotExists        Mode = "elementNotExists"
	ModeElementCountGreaterThan Mode = "elementCountGreaterThan"
	ModeProductScan             Mode = "productScan"
)

// Condition is one of the variant types below. The unexported method keeps the
// set closed so a site always carries exactly one mode.
type Condition interface {
	Mode() Mode
	isCondition()
}

type TextContains struct {
	Needle string
}

type TextNotContains struct {
	Needle string
}

type MatchesPattern struct {
	Pattern *regexp.Regexp
}

type ElementExists struct {
	Selector string
}

type ElementNotExists struct {
	Selector string
}

// ElementCountGreaterThan is met when strictly more than Count elements match.
type ElementCountGreaterThan struct {
	Selector string
	Count    int
}

// ProductScan treats the page as a list of named products. Name must match
// each product name (capture group 1 if present). URL, when set, is searched
// in a short window after each name.
type ProductScan struct {
	Name    *regexp.Regexp
	URL     *regexp.Regexp
	BaseURL string
	Exclude []string
}

func (TextContains) Mode() Mode            { return ModeTextContains }
func (TextNotContains) Mode() Mode         { return ModeTextNotContains }
func (MatchesPattern) Mode() Mode          { return ModeMatchesPattern }
func (ElementExists) Mode() Mode           { return ModeElementExists }
func (ElementNotExists) Mode() Mode        { return ModeElementNotExists }
func (ElementCountGreaterThan) Mode() Mode { return ModeElementCountGreaterThan }
func (ProductScan) Mode() Mode             { return ModeProductScan }

func (TextContains) isCondition()            {}
func (TextNotContains) isCondition()         {}
func (MatchesPattern) isCondition()          {}
func (ElementExists) isCondition()           {}
func (ElementNotExists) isCondition()        {}
func (ElementCountGreaterThan) isCondition() {}
func (ProductScan) isCondition()             {}

// RequiresRendering reports whether c can only be evaluated against a rendered DOM.
func RequiresRendering(c Condition) bool {
	switch c.(type) {
	case ElementExists, ElementNotExists, ElementCountGreaterThan:
		return true
	}
	return false
}

// IsProductScan reports whether c runs in product-scan mode.
func IsProductScan(c Condition) bool {
	_, ok := c.(ProductScan)
	return ok
}

// ValidateSelector checks that sel is a CSS selector goquery can run.
// goquery silently matches nothing on a bad selector, so catch it up front.
func ValidateSelector(sel string) error {
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}
