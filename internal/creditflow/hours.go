package creditflow

import "time"

// Visit scheduling hours: Monday-Friday 09:00-18:00, Saturday 09:00-14:00,
// closed Sunday.
const openingHour = 9

// closingHour returns the closing hour for a weekday, or 0 when closed.
func closingHour(w time.Weekday) int {
	switch w {
	case time.Sunday:
		return 0
	case time.Saturday:
		return 14
	default:
		return 18
	}
}

// withinBusinessHours reports whether t falls inside visiting hours.
func withinBusinessHours(t time.Time) bool {
	closing := closingHour(t.Weekday())
	if closing == 0 {
		return false
	}
	return t.Hour() >= openingHour && t.Hour() < closing
}
