// Package decision holds the rules for when a check result warrants a
// notification. Everything here is pure.
package decision

import (
	"github.com/pauljones0/aki-watcher/internal/models"
)

// ShouldNotify reports whether result is a rising edge for the site: the
// condition is met now and was not met (or its alert was never delivered)
// at the prior check. prior is nil for a site that has never been checked.
func ShouldNotify(prior *models.SiteState, result models.CheckResult) bool {
	if result.Failed() || !result.ConditionMet {
		return false
	}
	if prior == nil {
		return true
	}
	return prior.Status != models.StatusAvailable || prior.NotifyPending
}

// ShouldNotifyError reports whether result newly puts the site into error.
func ShouldNotifyError(prior *models.SiteState, result models.CheckResult) bool {
	if !result.Failed() {
		return false
	}
	return prior == nil || prior.Status != models.StatusError
}

// NewItems returns the entries of extracted that are not in notified, keeping
// the extracted order.
func NewItems(extracted, notified []string) []string {
	seen := make(map[string]struct{}, len(notified))
	for _, n := range notified {
		seen[n] = struct{}{}
	}
	var fresh []string
	for _, item := range extracted {
		if _, ok := seen[item]; !ok {
			fresh = append(fresh, item)
		}
	}
	return fresh
}

// FilterProducts keeps the products whose name is in names.
func FilterProducts(products []models.Product, names []string) []models.Product {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var kept []models.Product
	for _, p := range products {
		if _, ok := want[p.Name]; ok {
			kept = append(kept, p)
		}
	}
	return kept
}
