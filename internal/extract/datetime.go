package extract

import (
	"regexp"
	"strings"
	"time"
)

// VisitDateTime is a partially parsed visit request. Either half may be
// missing so the caller can ask only for the part it still needs.
type VisitDateTime struct {
	Date    time.Time // midnight of the requested day, valid when HasDate
	Hour    int
	Minute  int
	HasDate bool
	HasTime bool
}

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"domingo", time.Sunday},
	{"lunes", time.Monday},
	{"martes", time.Tuesday},
	{"miercoles", time.Wednesday},
	{"miércoles", time.Wednesday},
	{"jueves", time.Thursday},
	{"viernes", time.Friday},
	{"sabado", time.Saturday},
	{"sábado", time.Saturday},
}

var hourRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|hrs|h\b)?`)

// afternoonCutoff: bare hours 1-6 are taken as PM. Nobody schedules a
// house visit at 3 in the morning.
const afternoonCutoff = 6

// ParseVisitDateTime scans text for a weekday name, "hoy"/"mañana" and an
// hour token. now anchors the relative day words; weekday names resolve
// to their next occurrence (next week if the day already passed).
func ParseVisitDateTime(text string, now time.Time) VisitDateTime {
	lower := strings.ToLower(text)
	var out VisitDateTime

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "hoy"):
		out.Date, out.HasDate = today, true
	case strings.Contains(lower, "mañana"), strings.Contains(lower, "manana"):
		out.Date, out.HasDate = today.AddDate(0, 0, 1), true
	default:
		for _, w := range weekdayNames {
			if strings.Contains(lower, w.name) {
				days := int(w.day-now.Weekday()+7) % 7
				if days == 0 {
					days = 7
				}
				out.Date, out.HasDate = today.AddDate(0, 0, days), true
				break
			}
		}
	}

	for _, m := range hourRe.FindAllStringSubmatch(lower, -1) {
		hour := atoiSafe(m[1])
		minute := 0
		if m[2] != "" {
			minute = atoiSafe(m[2])
		}
		label := m[3]
		switch {
		case strings.HasPrefix(label, "pm"):
			if hour < 12 {
				hour += 12
			}
		case strings.HasPrefix(label, "am"):
			// explicit morning, keep as-is
		default:
			if hour >= 1 && hour <= afternoonCutoff {
				hour += 12
			}
		}
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			out.Hour, out.Minute, out.HasTime = hour, minute, true
			break
		}
	}

	return out
}

// Complete reports whether both halves were found.
func (v VisitDateTime) Complete() bool {
	return v.HasDate && v.HasTime
}

// At combines the parsed parts into a concrete timestamp.
func (v VisitDateTime) At() time.Time {
	return time.Date(v.Date.Year(), v.Date.Month(), v.Date.Day(), v.Hour, v.Minute, 0, 0, v.Date.Location())
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
