package viewstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcal/internal/calendar"
	"postcal/internal/model"
)

var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestReduceDoesNotMutateInput(t *testing.T) {
	s0 := New(now)
	s1 := Reduce(s0, ToggleSidebar{}, TogglePlatform{Platform: model.PlatformSMS})

	assert.False(t, s0.SidebarOpen)
	assert.Empty(t, s0.Platforms)
	assert.True(t, s1.SidebarOpen)
	assert.Equal(t, []model.Platform{model.PlatformSMS}, s1.Platforms)

	s2 := Reduce(s1, TogglePlatform{Platform: model.PlatformEmail})
	s2.Platforms[0] = model.PlatformFacebook
	assert.Equal(t, []model.Platform{model.PlatformSMS}, s1.Platforms)
}

func TestTogglePlatformRemoves(t *testing.T) {
	s := Reduce(New(now),
		TogglePlatform{Platform: model.PlatformSMS},
		TogglePlatform{Platform: model.PlatformEmail},
		TogglePlatform{Platform: model.PlatformSMS},
	)
	assert.Equal(t, []model.Platform{model.PlatformEmail}, s.Platforms)
}

func TestNavigation(t *testing.T) {
	s := Reduce(New(now), SetMode{Mode: model.ViewWeek}, Next{})
	assert.Equal(t, 22, s.Focus.Day())

	s = Reduce(s, SetMode{Mode: "year"}, Prev{}, Prev{})
	assert.Equal(t, model.ViewWeek, s.Mode)
	assert.Equal(t, 8, s.Focus.Day())

	s = Reduce(s, Today{Now: now})
	assert.True(t, s.Focus.Equal(now))

	s = Reduce(s, SetFocus{})
	assert.True(t, s.Focus.Equal(now))
}

func TestSelection(t *testing.T) {
	evs := calendar.AllEvents(calendar.MapEvents([]model.Post{
		{ID: 1, Platform: model.PlatformSMS, Campaign: "A", ScheduledTime: "2025-01-15T09:00:00Z"},
		{ID: 2, Platform: model.PlatformEmail, Campaign: "B", ScheduledTime: "2025-01-16T09:00:00Z"},
	}, time.UTC))

	s := Reduce(New(now), Select{ID: 2})
	ev, ok := s.Selected(evs)
	require.True(t, ok)
	assert.Equal(t, "B", ev.Title)

	s = Reduce(s, ClearSelection{})
	_, ok = s.Selected(evs)
	assert.False(t, ok)

	_, ok = Reduce(s, Select{ID: 99}).Selected(evs)
	assert.False(t, ok)
}

func TestVisible(t *testing.T) {
	evs := calendar.AllEvents(calendar.MapEvents([]model.Post{
		{ID: 1, Platform: model.PlatformSMS, Campaign: "A", ScheduledTime: "2025-01-15T09:00:00Z"},
		{ID: 2, Platform: model.PlatformEmail, Campaign: "B", ScheduledTime: "2025-01-16T09:00:00Z"},
		{ID: 3, Platform: model.PlatformSMS, Campaign: "C", ScheduledTime: "2025-02-01T09:00:00Z"},
	}, time.UTC))

	s := New(now)
	assert.Len(t, s.Visible(evs, time.Monday), 2)

	s = Reduce(s, SetMode{Mode: model.ViewDay})
	got := s.Visible(evs, time.Monday)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	s = Reduce(s, SetMode{Mode: model.ViewMonth}, TogglePlatform{Platform: model.PlatformEmail})
	got = s.Visible(evs, time.Monday)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}
