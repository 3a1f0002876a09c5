package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// parseDateRobust parses deadline strings in the formats our sources
// emit. Date-only values become end of day UTC so a deadline stays open
// through its final day.
func parseDateRobust(text string, locales []string) (time.Time, error) {
	text = cleanDateString(text)

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return toEndOfDay(t), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", text); err == nil {
		return t, nil
	}

	englishFormats := []string{
		"2 January 2006",
		"02 January 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"01/02/2006",
	}
	for _, format := range englishFormats {
		if t, err := time.Parse(format, text); err == nil {
			return toEndOfDay(t), nil
		}
	}

	for _, locale := range locales {
		lang := strings.SplitN(locale, "-", 2)[0]
		if months, ok := monthNames[lang]; ok {
			if t, ok := parseLocalizedDate(text, months); ok {
				return toEndOfDay(t), nil
			}
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return toEndOfDay(t), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// toEndOfDay sets the time to 23:59:59 UTC on the same calendar day.
func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// monthNames maps localized month names to English for the languages
// our sources publish in.
var monthNames = map[string]map[string]string{
	"es": {
		"enero": "January", "febrero": "February", "marzo": "March",
		"abril": "April", "mayo": "May", "junio": "June",
		"julio": "July", "agosto": "August", "septiembre": "September",
		"octubre": "October", "noviembre": "November", "diciembre": "December",
	},
	"fr": {
		"janvier": "January", "février": "February", "mars": "March",
		"avril": "April", "mai": "May", "juin": "June",
		"juillet": "July", "août": "August", "septembre": "September",
		"octobre": "October", "novembre": "November", "décembre": "December",
	},
	"de": {
		"januar": "January", "februar": "February", "märz": "March",
		"april": "April", "mai": "May", "juni": "June",
		"juli": "July", "august": "August", "september": "September",
		"oktober": "October", "november": "November", "dezember": "December",
	},
}

// parseLocalizedDate substitutes localized month names and strips the
// filler words ("de", "del") common in Romance-language dates.
func parseLocalizedDate(text string, months map[string]string) (time.Time, bool) {
	lower := strings.ToLower(text)
	for local, english := range months {
		lower = strings.ReplaceAll(lower, local, english)
	}
	lower = strings.ReplaceAll(lower, " del ", " ")
	lower = strings.ReplaceAll(lower, " de ", " ")
	lower = normalizeSpace(lower)

	for _, format := range []string{"2 January 2006", "02 January 2006", "2. January 2006"} {
		if t, err := time.Parse(format, lower); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	isoDateRegex   = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	slashDateRegex = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	monthDateRegex = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2}),?\s+(20\d{2})\b`)
)

// parseDateWithRegex extracts a date embedded in longer text. Slash
// dates are tried month-first, then day-first.
func parseDateWithRegex(text string) time.Time {
	if m := isoDateRegex.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}

	if m := slashDateRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
		if t, err := time.Parse("1/2/2006", dateStr); err == nil {
			return t
		}
		dateStr = fmt.Sprintf("%s/%s/%s", m[2], m[1], m[3])
		if t, err := time.Parse("1/2/2006", dateStr); err == nil {
			return t
		}
	}

	if m := monthDateRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s %s %s", m[1], m[2], m[3])
		for _, format := range []string{"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006"} {
			if t, err := time.Parse(format, dateStr); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}

// cleanDateString removes labels that sources prepend to deadlines.
func cleanDateString(s string) string {
	prefixes := []string{
		"closing date:", "deadline:", "due date:", "expires:", "ends:",
		"fecha límite:", "fecha de cierre:", "cierre:",
		"date limite:", "date de clôture:",
		"frist:", "einsendeschluss:",
	}
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			s = s[idx+len(p):]
			lower = lower[idx+len(p):]
		}
	}
	return strings.TrimSpace(s)
}
