package condition

import (
	"math"
	"time"

	"github.com/pauljones0/aki-watcher/internal/util"
)

// extractSlots returns the normalized text of every slot link in document order.
// Identical slots are kept; the page decides how many there are.
func (e *Evaluator) extractSlots(content string) []string {
	var slots []string
	for _, m := range e.slotItem.FindAllStringSubmatch(content, -1) {
		raw := m[0]
		if len(m) > 1 {
			raw = m[1]
		}
		if text := util.NormalizeSpace(raw); text != "" {
			slots = append(slots, text)
		}
	}
	return slots
}

// filterByLeadTime keeps slots dated at least minDays days after now.
// Slots whose date cannot be read are dropped.
func (e *Evaluator) filterByLeadTime(slots []string, minDays int, now time.Time) []string {
	if now.IsZero() {
		now = time.Now()
	}
	var kept []string
	for _, slot := range slots {
		date, ok := e.slotDateOf(slot, now)
		if !ok {
			continue
		}
		if DaysAhead(date, now) >= minDays {
			kept = append(kept, slot)
		}
	}
	return kept
}

// slotDateOf reads the month/day in slot and places it in a year relative to now.
func (e *Evaluator) slotDateOf(slot string, now time.Time) (time.Time, bool) {
	m := e.slotDate.FindStringSubmatch(slot)
	if m == nil {
		return time.Time{}, false
	}
	month := util.SafeAtoi(m[1])
	day := util.SafeAtoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	year := InferYear(now, time.Month(month))
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if date.Day() != day {
		// 2月30日 and friends roll over into the next month.
		return time.Time{}, false
	}
	return date, true
}

// InferYear places a month-only date. Late in the year (October onwards), a
// month up to March refers to next year.
func InferYear(now time.Time, month time.Month) int {
	if now.Month() >= time.October && month <= time.March {
		return now.Year() + 1
	}
	return now.Year()
}

// DaysAhead is the ceiling of the number of days from now until date.
func DaysAhead(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}
