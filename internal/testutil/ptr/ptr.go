// Package ptr provides pointer helpers for tests.
package ptr

import "time"

// Date returns a pointer to midnight UTC on the given day.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
