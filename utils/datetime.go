package utils

import (
	"strings"
	"time"
)

// DisplayLayout is how booked appointment times are shown and stored.
const DisplayLayout = "Jan 02, 2006, 03:04 PM"

const (
	morningHour = 10
	eveningHour = 18
)

// Layouts tried, in order, when the input is not one of the relative forms.
// Inputs are upper-cased first so month names and AM/PM match.
var genericLayouts = []string{
	DisplayLayout,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
	"2006-01-02 3:04 PM",
	"2006-01-02 3PM",
	"2006-01-02",
	"2 Jan 2006 3:04 PM",
	"2 Jan 2006 3:04PM",
	"2 Jan 2006 15:04",
	"2 Jan 2006 3 PM",
	"2 Jan 2006 3PM",
	"2 Jan 2006",
	"2 January 2006 3:04 PM",
	"2 January 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"02/01/2006 15:04",
	"02/01/2006",
}

var clockLayouts = []string{
	"3PM",
	"3 PM",
	"3:04PM",
	"3:04 PM",
	"15:04",
}

// DateParser turns the free-text date answers of the booking flow into times.
// Only today, tomorrow, tomorrow plus a clock time, and morning or evening
// are understood as relative phrases. "next Monday evening" resolves to
// tomorrow evening; anything else goes through the fixed layouts.
type DateParser struct {
	now func() time.Time
	loc *time.Location
}

func NewDateParser(loc *time.Location, now func() time.Time) *DateParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &DateParser{now: now, loc: loc}
}

// Parse returns the resolved time and whether the input was understood.
func (p *DateParser) Parse(input string) (time.Time, bool) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	now := p.now().In(p.loc)
	tomorrow := now.AddDate(0, 0, 1)

	switch {
	case lower == "":
		return time.Time{}, false
	case lower == "today":
		return now, true
	case lower == "tomorrow":
		return tomorrow, true
	case strings.Contains(lower, "tomorrow"):
		return p.tomorrowAt(tomorrow, lower)
	case strings.Contains(lower, "morning") || strings.Contains(lower, "evening"):
		return atHour(tomorrow, partOfDayHour(lower)), true
	}

	return p.parseLayouts(trimmed, genericLayouts)
}

// FormatDisplay renders t in the parser's location.
func (p *DateParser) FormatDisplay(t time.Time) string {
	return t.In(p.loc).Format(DisplayLayout)
}

// ParseStored reads a datetime previously saved on an appointment. It is
// used only for ordering, so relative phrases are not resolved.
func (p *DateParser) ParseStored(value string) (time.Time, bool) {
	return p.parseLayouts(strings.TrimSpace(value), genericLayouts)
}

func (p *DateParser) tomorrowAt(tomorrow time.Time, lower string) (time.Time, bool) {
	rest := strings.TrimSpace(strings.Replace(lower, "tomorrow", "", 1))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "at "))

	if rest == "" {
		return tomorrow, true
	}
	if strings.Contains(rest, "morning") || strings.Contains(rest, "evening") {
		return atHour(tomorrow, partOfDayHour(rest)), true
	}

	clock, ok := p.parseLayouts(rest, clockLayouts)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
		clock.Hour(), clock.Minute(), 0, 0, p.loc), true
}

func (p *DateParser) parseLayouts(value string, layouts []string) (time.Time, bool) {
	value = strings.ToUpper(value)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func partOfDayHour(lower string) int {
	if strings.Contains(lower, "evening") {
		return eveningHour
	}
	return morningHour
}

func atHour(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}
