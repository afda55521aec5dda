// Package dates resolves spoken date references ("hoy", "ayer",
// "5 de marzo") into calendar days.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Months lists Spanish month names, January first.
var Months = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var weekdays = [7]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

const (
	todayWord     = "hoy"
	yesterdayWord = "ayer"
)

var dayOfMonthRe = regexp.MustCompile(`(\d{1,2})\s+de\s+(\p{L}+)`)

// Resolver turns date phrases into calendar days relative to Now
type Resolver struct {
	Now func() time.Time
}

// NewResolver returns a resolver using the wall clock
func NewResolver() *Resolver {
	return &Resolver{Now: time.Now}
}

// Resolve finds the first date reference in text. Rules are checked in
// order: same-day marker, previous-day marker, "<day> de <month>". The
// returned time is midnight in the clock's location.
func (r *Resolver) Resolve(text string) (time.Time, bool) {
	now := r.now()
	today := Day(now)
	text = strings.ToLower(text)

	switch {
	case strings.Contains(text, todayWord):
		return today, true
	case strings.Contains(text, yesterdayWord):
		return today.AddDate(0, 0, -1), true
	}

	m := dayOfMonthRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := MonthByName(m[2])
	if !ok {
		return time.Time{}, false
	}
	date := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	// reject overflow such as "31 de febrero"
	if day < 1 || date.Month() != month {
		return time.Time{}, false
	}
	return date, true
}

func (r *Resolver) now() time.Time {
	if r == nil || r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// MonthByName looks up a Spanish month name, case-insensitively
func MonthByName(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, m := range Months {
		if m == name {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// Day truncates t to midnight in its own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in b's location
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LongSpanish formats t as "jueves, 5 de marzo"
func LongSpanish(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s", weekdays[t.Weekday()], t.Day(), Months[t.Month()-1])
}
