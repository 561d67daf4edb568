package domain

import "time"

// persianYearOffset is the whole-year distance between the Solar Hijri and
// Gregorian calendars used throughout the datasets.
const persianYearOffset = 621

// NormalizeYear maps a Persian year to January 1 (UTC) of the corresponding
// Gregorian year. Any integer is accepted.
func NormalizeYear(local int) time.Time {
	return time.Date(local+persianYearOffset, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// LocalYear is the inverse of NormalizeYear for chart labels.
func LocalYear(t time.Time) int {
	return t.Year() - persianYearOffset
}
