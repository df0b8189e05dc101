package calendar

import (
	"slices"
	"strings"
	"time"

	"postcal/internal/model"
)

// InvalidDayKey buckets events whose start could not be parsed.
const InvalidDayKey = "invalid-date"

const dayKeyLayout = "2006-01-02"

// DayKey is the ISO date of t in t's own location. ISO keys sort
// chronologically as plain strings. The zero time maps to InvalidDayKey;
// use EventDayKey for events.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return InvalidDayKey
	}
	return t.Format(dayKeyLayout)
}

// EventDayKey is the day key of an event's start, or InvalidDayKey when
// its scheduled time could not be parsed.
func EventDayKey(ev model.CalendarEvent) string {
	if !ev.Valid() {
		return InvalidDayKey
	}
	return ev.Start.Format(dayKeyLayout)
}

// GroupEventsByDate buckets events by EventDayKey. Input order is kept
// inside each bucket; nothing is sorted.
func GroupEventsByDate(events []model.CalendarEvent) map[string][]model.CalendarEvent {
	groups := make(map[string][]model.CalendarEvent)
	for _, ev := range events {
		key := EventDayKey(ev)
		groups[key] = append(groups[key], ev)
	}
	return groups
}

// SortedDayKeys returns the keys of groups in chronological order, with
// InvalidDayKey last.
func SortedDayKeys(groups map[string][]model.CalendarEvent) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == InvalidDayKey:
			return 1
		case b == InvalidDayKey:
			return -1
		default:
			return strings.Compare(a, b)
		}
	})
	return keys
}

// AgendaOptions controls BuildAgenda.
type AgendaOptions struct {
	// SortWithinDay orders each day by start time (stable). Otherwise the
	// backend order is kept.
	SortWithinDay bool
}

// AgendaEntry is one post line in the agenda.
type AgendaEntry struct {
	Event model.CalendarEvent
	Time  string
}

// AgendaDay is one labelled day of the agenda.
type AgendaDay struct {
	Key     string
	Label   string
	Entries []AgendaEntry
}

// BuildAgenda groups events by day, orders the days and labels them.
func BuildAgenda(events []model.CalendarEvent, labeler *Labeler, opts AgendaOptions) []AgendaDay {
	groups := GroupEventsByDate(events)
	keys := SortedDayKeys(groups)

	days := make([]AgendaDay, 0, len(keys))
	for _, key := range keys {
		bucket := groups[key]
		if opts.SortWithinDay {
			bucket = slices.Clone(bucket)
			slices.SortStableFunc(bucket, func(a, b model.CalendarEvent) int {
				return a.Start.Compare(b.Start)
			})
		}

		entries := make([]AgendaEntry, 0, len(bucket))
		for _, ev := range bucket {
			entries = append(entries, AgendaEntry{
				Event: ev,
				Time:  labeler.EventTime(ev),
			})
		}
		days = append(days, AgendaDay{
			Key:     key,
			Label:   labeler.DateLabel(key),
			Entries: entries,
		})
	}
	return days
}

// FilterByPlatform keeps events on any of the given platforms. With no
// platforms it returns a copy of events.
func FilterByPlatform(events []model.CalendarEvent, platforms ...model.Platform) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if len(platforms) == 0 || slices.Contains(platforms, ev.Platform) {
			out = append(out, ev)
		}
	}
	return out
}
