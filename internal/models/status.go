package models

import (
	"time"
)

// SiteStatus is the last observed state of a watched site.
type SiteStatus string

const (
	StatusAvailable   SiteStatus = "available"
	StatusUnavailable SiteStatus = "unavailable"
	StatusError       SiteStatus = "error"
)

// SiteState is the persisted record for one site. One record per site name.
type SiteState struct {
	Name             string     `json:"name" firestore:"name"`
	Status           SiteStatus `json:"status" firestore:"status"`
	LastChecked      time.Time  `json:"lastChecked" firestore:"lastChecked"`
	LastNotified     *time.Time `json:"lastNotified,omitempty" firestore:"lastNotified,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty" firestore:"errorMessage,omitempty"`
	NotifiedProducts []string   `json:"notifiedProducts,omitempty" firestore:"notifiedProducts,omitempty"`

	// NotifyPending is set when a notification was due but could not be
	// delivered. The next check treats the site as a fresh rising edge.
	NotifyPending bool `json:"notifyPending,omitempty" firestore:"notifyPending,omitempty"`
}

// StatusData is the whole persisted document.
type StatusData struct {
	LastUpdated time.Time   `json:"lastUpdated" firestore:"lastUpdated"`
	Sites       []SiteState `json:"sites" firestore:"sites"`
}

// NewStatusData returns the empty document used when nothing has been persisted yet.
func NewStatusData(now time.Time) *StatusData {
	return &StatusData{
		LastUpdated: now,
		Sites:       []SiteState{},
	}
}

// Clone returns a deep copy of d.
func (d *StatusData) Clone() *StatusData {
	if d == nil {
		return nil
	}
	out := &StatusData{
		LastUpdated: d.LastUpdated,
		Sites:       make([]SiteState, len(d.Sites)),
	}
	for i, s := range d.Sites {
		out.Sites[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of s.
func (s SiteState) Clone() SiteState {
	if s.LastNotified != nil {
		t := *s.LastNotified
		s.LastNotified = &t
	}
	if s.NotifiedProducts != nil {
		s.NotifiedProducts = append([]string(nil), s.NotifiedProducts...)
	}
	return s
}
