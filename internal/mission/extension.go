package mission

import (
	"time"

	"protectbox/internal/model"
)

// DaysUntil returns whole calendar days from today to due. Both instants are
// reduced to their date in today's location, so time of day never matters.
func DaysUntil(due, today time.Time) int {
	loc := today.Location()
	dy, dm, dd := due.In(loc).Date()
	ty, tm, td := today.Date()
	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(d.Sub(t).Hours() / 24)
}

// ExtensionEligible reports whether a mission may be granted its one extension today
func ExtensionEligible(m model.Mission, today time.Time) bool {
	if m.ExtensionRequested {
		return false
	}
	if !statusIn(m.Status, model.MissionStatusAssigned, model.MissionStatusActive) {
		return false
	}
	d := DaysUntil(m.DueDate, today)
	return d >= 0 && d <= ExtensionWindowDays
}

// ExtensionWindowOpensAt is the first instant the extension window is open
func ExtensionWindowOpensAt(m model.Mission) time.Time {
	y, mo, d := m.DueDate.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.DueDate.Location()).AddDate(0, 0, -ExtensionWindowDays)
}

// OverdueAt is the first instant a mission counts as overdue
func OverdueAt(m model.Mission) time.Time {
	y, mo, d := m.DueDate.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.DueDate.Location()).AddDate(0, 0, 1)
}
