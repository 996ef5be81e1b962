package decision

import (
	"reflect"
	"testing"
	"time"

	"github.com/pauljones0/aki-watcher/internal/models"
)

func TestShouldNotify(t *testing.T) {
	notifiedAt := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	met := models.CheckResult{SiteName: "course", ConditionMet: true}
	unmet := models.CheckResult{SiteName: "course"}
	failed := models.CheckResult{SiteName: "course", ConditionMet: true, Error: "timeout"}

	tests := []struct {
		name   string
		prior  *models.SiteState
		result models.CheckResult
		want   bool
	}{
		{"First check, met", nil, met, true},
		{"First check, unmet", nil, unmet, false},
		{"Rising edge from unavailable", &models.SiteState{Status: models.StatusUnavailable}, met, true},
		{"Rising edge from error", &models.SiteState{Status: models.StatusError}, met, true},
		{"Still available", &models.SiteState{Status: models.StatusAvailable, LastNotified: &notifiedAt}, met, false},
		{"Pending retry", &models.SiteState{Status: models.StatusAvailable, NotifyPending: true}, met, true},
		{"Available, nothing pending", &models.SiteState{Status: models.StatusAvailable, NotifyPending: false}, met, false},
		{"Falling edge", &models.SiteState{Status: models.StatusAvailable}, unmet, false},
		{"Error result never notifies", nil, failed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.prior, tt.result); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Unavailable, available, available, unavailable, available fires on the
// 2nd and 5th checks only.
func TestShouldNotify_Sequence(t *testing.T) {
	sequence := []bool{false, true, true, false, true}
	want := []bool{false, true, false, false, true}

	var prior *models.SiteState
	for i, met := range sequence {
		result := models.CheckResult{SiteName: "course", ConditionMet: met}
		if got := ShouldNotify(prior, result); got != want[i] {
			t.Errorf("check %d: ShouldNotify() = %v, want %v", i+1, got, want[i])
		}
		prior = &models.SiteState{Name: "course", Status: result.Status()}
	}
}

func TestShouldNotifyError(t *testing.T) {
	failed := models.CheckResult{SiteName: "course", Error: "HTTP 503"}
	ok := models.CheckResult{SiteName: "course", ConditionMet: true}

	tests := []struct {
		name   string
		prior  *models.SiteState
		result models.CheckResult
		want   bool
	}{
		{"First check fails", nil, failed, true},
		{"Into error", &models.SiteState{Status: models.StatusUnavailable}, failed, true},
		{"Still error", &models.SiteState{Status: models.StatusError}, failed, false},
		{"Not an error", nil, ok, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotifyError(tt.prior, tt.result); got != tt.want {
				t.Errorf("ShouldNotifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewItems(t *testing.T) {
	tests := []struct {
		name      string
		extracted []string
		notified  []string
		want      []string
	}{
		{"Nothing notified", []string{"A", "B"}, nil, []string{"A", "B"}},
		{"Partial overlap keeps order", []string{"C", "A", "B"}, []string{"A"}, []string{"C", "B"}},
		{"All notified", []string{"A", "B"}, []string{"B", "A"}, nil},
		{"Nothing extracted", nil, []string{"A"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewItems(tt.extracted, tt.notified); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewItems() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterProducts(t *testing.T) {
	products := []models.Product{
		{Name: "A", URL: "https://shop.example.jp/a"},
		{Name: "B"},
		{Name: "C", URL: "https://shop.example.jp/c"},
	}
	got := FilterProducts(products, []string{"C", "A"})
	want := []models.Product{products[0], products[2]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterProducts() = %+v, want %+v", got, want)
	}
}
