package models

import "time"

// Product is one entry found by a product scan.
type Product struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// CheckResult is produced once per site per cycle and never persisted as-is.
type CheckResult struct {
	SiteName     string    `json:"siteName"`
	ConditionMet bool      `json:"conditionMet"`
	Items        []string  `json:"items,omitempty"`
	Products     []Product `json:"products,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// Failed reports whether the check ended in a fetch or evaluation error.
func (r CheckResult) Failed() bool {
	return r.Error != ""
}

// Status maps the result onto the persisted status vocabulary.
func (r CheckResult) Status() SiteStatus {
	switch {
	case r.Failed():
		return StatusError
	case r.ConditionMet:
		return StatusAvailable
	default:
		return StatusUnavailable
	}
}

// ProductNames returns the names of the extracted products in order.
func (r CheckResult) ProductNames() []string {
	names := make([]string, 0, len(r.Products))
	for _, p := range r.Products {
		names = append(names, p.Name)
	}
	return names
}
