// Package export serialises calendar events for external calendar apps.
package export

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"postcal/internal/model"
)

const productID = "-//postcal//scheduled posts//EN"

// EventUID is the stable iCalendar UID of a post.
func EventUID(id int64) string {
	return fmt.Sprintf("post-%d@postcal", id)
}

// BuildCalendar turns events into a VCALENDAR. Events without a valid start
// are skipped. stamp is used as DTSTAMP for every VEVENT.
func BuildCalendar(events []model.CalendarEvent, name string, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		vev := cal.AddEvent(EventUID(ev.ID))
		vev.SetDtStampTime(stamp.UTC())
		vev.SetStartAt(ev.Start.UTC())
		vev.SetEndAt(ev.End.UTC())
		vev.SetSummary(ev.Title)
		if ev.Message != "" {
			vev.SetDescription(ev.Message)
		}
		vev.AddProperty(ical.ComponentPropertyCategories, string(ev.Platform))
	}
	return cal
}

// WriteICS writes events as an iCalendar feed.
func WriteICS(w io.Writer, events []model.CalendarEvent, name string) error {
	return BuildCalendar(events, name, time.Now()).SerializeTo(w)
}
