package condition

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pauljones0/aki-watcher/internal/models"
)

// Outcome is what a page says about a site's condition.
type Outcome struct {
	Met      bool
	Items    []string
	Products []models.Product
}

// Options carries the per-site knobs that are not part of the condition itself.
type Options struct {
	// MinDaysAhead drops slots dated fewer than this many days from Now. nil disables it.
	MinDaysAhead *int
	Now          time.Time
}

// Evaluator applies conditions to pages. It holds compiled extraction patterns
// and no other state, so one instance serves a whole run.
type Evaluator struct {
	slotItem  *regexp.Regexp
	slotDate  *regexp.Regexp
	urlWindow int
}

// NewEvaluator compiles the extraction patterns.
func NewEvaluator(p Patterns) (*Evaluator, error) {
	item, err := regexp.Compile(p.Slot.Item)
	if err != nil {
		return nil, fmt.Errorf("invalid slot item pattern: %w", err)
	}
	date, err := regexp.Compile(p.Slot.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid slot date pattern: %w", err)
	}
	if date.NumSubexp() < 2 {
		return nil, fmt.Errorf("slot date pattern %q needs month and day capture groups", p.Slot.Date)
	}
	window := p.Product.URLWindow
	if window <= 0 {
		window = DefaultPatterns().Product.URLWindow
	}
	return &Evaluator{
		slotItem:  item,
		slotDate:  date,
		urlWindow: window,
	}, nil
}

// Evaluate decides whether cond holds for page and extracts what is available.
// A nil condition is never met. Errors only come from structural conditions
// that cannot be evaluated.
func (e *Evaluator) Evaluate(page Page, cond Condition, opts Options) (Outcome, error) {
	if cond == nil {
		slog.Warn("No valid condition specified, treating as not met")
		return Outcome{}, nil
	}

	if scan, ok := cond.(ProductScan); ok {
		products := e.scanProducts(page.Content, scan)
		if len(products) == 0 {
			return Outcome{}, nil
		}
		names := make([]string, 0, len(products))
		for _, p := range products {
			names = append(names, p.Name)
		}
		return Outcome{Met: true, Items: names, Products: products}, nil
	}

	met, err := e.conditionMet(page, cond)
	if err != nil {
		return Outcome{}, err
	}
	if !met {
		return Outcome{}, nil
	}

	items := e.extractSlots(page.Content)
	if opts.MinDaysAhead != nil && len(items) > 0 {
		items = e.filterByLeadTime(items, *opts.MinDaysAhead, opts.Now)
		if len(items) == 0 {
			// Every slot is too close to book. The site is then recorded as
			// unavailable, so a later far-enough slot notifies as a new edge.
			return Outcome{}, nil
		}
	}
	return Outcome{Met: true, Items: items}, nil
}

func (e *Evaluator) conditionMet(page Page, cond Condition) (bool, error) {
	switch c := cond.(type) {
	case TextContains:
		return strings.Contains(page.Content, c.Needle), nil
	case TextNotContains:
		return !strings.Contains(page.Content, c.Needle), nil
	case MatchesPattern:
		if c.Pattern == nil {
			return false, nil
		}
		return c.Pattern.MatchString(page.Content), nil
	case ElementExists:
		n, err := page.Count(c.Selector)
		return n > 0, err
	case ElementNotExists:
		n, err := page.Count(c.Selector)
		return n == 0 && err == nil, err
	case ElementCountGreaterThan:
		n, err := page.Count(c.Selector)
		return n > c.Count, err
	default:
		return false, fmt.Errorf("unsupported condition mode %q", cond.Mode())
	}
}
