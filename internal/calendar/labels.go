package calendar

import (
	"time"

	"postcal/internal/locales"
	"postcal/internal/model"
)

// Labeler turns day keys and instants into display strings. The clock is
// read on every call, so labels roll over at midnight.
type Labeler struct {
	loc *time.Location
	tr  *locales.Localizer
	now func() time.Time
}

// NewLabeler returns a Labeler for the display location and locale code.
func NewLabeler(loc *time.Location, locale string) *Labeler {
	if loc == nil {
		loc = time.UTC
	}
	return &Labeler{
		loc: loc,
		tr:  locales.New(locale),
		now: time.Now,
	}
}

// WithClock returns a copy of l that reads the time from now.
func (l *Labeler) WithClock(now func() time.Time) *Labeler {
	cp := *l
	cp.now = now
	return &cp
}

// Location is the display location.
func (l *Labeler) Location() *time.Location {
	return l.loc
}

// DateLabel returns "Today", "Yesterday" or a formatted date for a day key.
func (l *Labeler) DateLabel(dayKey string) string {
	if dayKey == InvalidDayKey {
		return l.tr.T(locales.MsgInvalidDate)
	}
	day, err := time.ParseInLocation(dayKeyLayout, dayKey, l.loc)
	if err != nil {
		return l.tr.T(locales.MsgInvalidDate)
	}

	today := l.now().In(l.loc)
	switch dayKey {
	case DayKey(today):
		return l.tr.T(locales.MsgToday)
	case DayKey(today.AddDate(0, 0, -1)):
		return l.tr.T(locales.MsgYesterday)
	}

	if l.tr.English() {
		return day.Format("Mon, Jan 2, 2006")
	}
	return day.Format("2006-01-02")
}

// FormatReadableTime renders the hour and minute of t in the display
// location: "3:04 PM" for English, "15:04" otherwise.
func (l *Labeler) FormatReadableTime(t time.Time) string {
	if t.IsZero() {
		return l.tr.T(locales.MsgInvalidDate)
	}
	return l.clock(t)
}

// EventTime is FormatReadableTime for an event's start, honoring the
// event's invalid-time flag rather than the zero instant.
func (l *Labeler) EventTime(ev model.CalendarEvent) string {
	if !ev.Valid() {
		return l.tr.T(locales.MsgInvalidDate)
	}
	return l.clock(ev.Start)
}

func (l *Labeler) clock(t time.Time) string {
	if l.tr.English() {
		return t.In(l.loc).Format("3:04 PM")
	}
	return t.In(l.loc).Format("15:04")
}

// EmptyMessage is shown when the agenda has no days.
func (l *Labeler) EmptyMessage() string {
	return l.tr.T(locales.MsgNoPosts)
}
