package calendar

import (
	"strings"
	"time"

	"postcal/internal/model"
)

// ParseWeekStart maps "sunday" to time.Sunday; anything else is Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// ViewRange returns the half-open [start, end) span covered by a grid view
// around focus, in focus's location.
func ViewRange(mode model.ViewMode, focus time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	day := time.Date(focus.Year(), focus.Month(), focus.Day(), 0, 0, 0, 0, focus.Location())

	switch mode {
	case model.ViewDay:
		return day, day.AddDate(0, 0, 1)
	case model.ViewWeek:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	default:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0)
	}
}

// EventsInRange keeps valid events starting in [start, end), in input order.
func EventsInRange(events []model.CalendarEvent, start, end time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		if ev.Start.Before(start) || !ev.Start.Before(end) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Step moves focus by one view span in the given direction (+1 or -1).
func Step(mode model.ViewMode, focus time.Time, dir int) time.Time {
	switch mode {
	case model.ViewDay:
		return focus.AddDate(0, 0, dir)
	case model.ViewWeek:
		return focus.AddDate(0, 0, 7*dir)
	default:
		// Pin to the 1st so Jan 31 -> Feb does not overflow into March.
		first := time.Date(focus.Year(), focus.Month(), 1, focus.Hour(), focus.Minute(), focus.Second(), focus.Nanosecond(), focus.Location())
		return first.AddDate(0, dir, 0)
	}
}
