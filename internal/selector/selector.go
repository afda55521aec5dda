// Package selector picks target entries from a recency-ordered list.
package selector

import (
	"time"

	"github.com/pbaille/diario/internal/dates"
	"github.com/pbaille/diario/internal/domain"
)

// MostRecent returns the first entry of a most-recent-first list
func MostRecent(entries []domain.Entry) (domain.Entry, error) {
	if len(entries) == 0 {
		return domain.Entry{}, domain.ErrNotFound
	}
	return entries[0], nil
}

// AllOnDate returns the entries created on date's calendar day, in input
// order. Time of day is ignored; the day is evaluated in date's location.
func AllOnDate(entries []domain.Entry, date time.Time) []domain.Entry {
	var found []domain.Entry
	for _, e := range entries {
		if dates.SameDay(e.CreatedAt, date) {
			found = append(found, e)
		}
	}
	return found
}
