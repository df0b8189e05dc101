// Package calendar turns scheduled posts into calendar events and a
// day-grouped agenda.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"postcal/internal/model"
)

// MappingError reports a post whose scheduled time could not be parsed.
type MappingError struct {
	PostID int64
	Value  string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("post %d: unparseable scheduled time %q: %v", e.PostID, e.Value, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// MapResult is the per-post outcome of MapEvents. When Err is set, Event
// still carries the post's fields but its Start/End are zero.
type MapResult struct {
	Event model.CalendarEvent
	Err   *MappingError
}

// Offset-less layouts are read in the display location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var errNoLayout = errors.New("no matching ISO-8601 layout")

// ParseScheduledTime parses an ISO-8601 timestamp. Values with an offset or
// Z keep their instant; values without one are taken as wall time in loc.
func ParseScheduledTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoLayout
}

// MapEvents converts posts into calendar events, one result per post in
// input order. Start is expressed in loc (UTC if nil) and End equals Start.
func MapEvents(posts []model.Post, loc *time.Location) []MapResult {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]MapResult, 0, len(posts))
	for _, p := range posts {
		out = append(out, mapPost(p, loc))
	}
	return out
}

func mapPost(p model.Post, loc *time.Location) MapResult {
	ev := model.CalendarEvent{
		ID:       p.ID,
		Title:    p.Campaign,
		Platform: p.Platform,
		Message:  p.Message,
		Campaign: p.Campaign,
	}

	start, err := ParseScheduledTime(p.ScheduledTime, loc)
	if err != nil {
		ev.TimeInvalid = true
		return MapResult{
			Event: ev,
			Err:   &MappingError{PostID: p.ID, Value: p.ScheduledTime, Err: err},
		}
	}

	ev.Start = start.In(loc)
	ev.End = ev.Start
	return MapResult{Event: ev}
}

// ValidEvents returns the events of results that mapped cleanly.
func ValidEvents(results []MapResult) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Event)
		}
	}
	return out
}

// AllEvents returns every event, including invalid-date sentinels.
func AllEvents(results []MapResult) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(results))
	for _, r := range results {
		out = append(out, r.Event)
	}
	return out
}

// MappingErrors returns the errors of results that failed to map.
func MappingErrors(results []MapResult) []*MappingError {
	var out []*MappingError
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}
