package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcal/internal/calendar"
	"postcal/internal/model"
)

func TestWriteICS(t *testing.T) {
	evs := calendar.AllEvents(calendar.MapEvents([]model.Post{
		{ID: 1, Platform: model.PlatformWhatsApp, Campaign: "Launch", Message: "Hi", ScheduledTime: "2025-01-05T10:00:00Z"},
		{ID: 2, Platform: model.PlatformEmail, Campaign: "Broken", ScheduledTime: "bad"},
	}, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, evs, "Scheduled posts"))

	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "X-WR-CALNAME:Scheduled posts")
	assert.Contains(t, out, "DTSTART:20250105T100000Z")
	assert.Contains(t, out, "DTEND:20250105T100000Z")
	assert.NotContains(t, out, "Broken")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	vevents := cal.Events()
	require.Len(t, vevents, 1)

	ev := vevents[0]
	assert.Equal(t, EventUID(1), ev.GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Launch", ev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Hi", ev.GetProperty(ical.ComponentPropertyDescription).Value)
	assert.Equal(t, "whatsapp", ev.GetProperty(ical.ComponentPropertyCategories).Value)
}

func TestWriteICSEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, nil, ""))
	assert.Contains(t, buf.String(), "END:VCALENDAR")
	assert.NotContains(t, buf.String(), "BEGIN:VEVENT")
}
