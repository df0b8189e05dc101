// Package viewstate holds the calendar screen state as an immutable value
// changed only through Reduce.
package viewstate

import (
	"slices"
	"time"

	"postcal/internal/calendar"
	"postcal/internal/model"
)

// State is the calendar screen state. Treat it as a value: Reduce never
// mutates its input and never shares slices with it.
type State struct {
	Mode        model.ViewMode
	Focus       time.Time
	SelectedID  int64 // 0 means nothing selected
	SidebarOpen bool
	Platforms   []model.Platform // empty means all
}

// New returns the initial state focused on now.
func New(now time.Time) State {
	return State{Mode: model.ViewMonth, Focus: now}
}

// Action is a state transition request.
type Action interface {
	apply(State) State
}

// SetMode switches the grid to Mode; unknown modes are ignored.
type SetMode struct{ Mode model.ViewMode }

// SetFocus moves the grid to Focus; a zero time is ignored.
type SetFocus struct{ Focus time.Time }

// Next advances the focus by one view span.
type Next struct{}

// Prev moves the focus back by one view span.
type Prev struct{}

// Today moves the focus to Now.
type Today struct{ Now time.Time }

// Select opens the detail of the event with ID.
type Select struct{ ID int64 }

// ClearSelection closes the event detail.
type ClearSelection struct{}

// ToggleSidebar opens or closes the sidebar.
type ToggleSidebar struct{}

// TogglePlatform adds Platform to the filter, or removes it if present.
type TogglePlatform struct{ Platform model.Platform }

// Reduce applies actions in order and returns the resulting state.
func Reduce(s State, actions ...Action) State {
	s = s.clone()
	for _, a := range actions {
		if a == nil {
			continue
		}
		s = a.apply(s)
	}
	return s
}

func (s State) clone() State {
	s.Platforms = slices.Clone(s.Platforms)
	return s
}

func (a SetMode) apply(s State) State {
	switch a.Mode {
	case model.ViewMonth, model.ViewWeek, model.ViewDay:
		s.Mode = a.Mode
	}
	return s
}

func (a SetFocus) apply(s State) State {
	if !a.Focus.IsZero() {
		s.Focus = a.Focus
	}
	return s
}

func (Next) apply(s State) State {
	s.Focus = calendar.Step(s.Mode, s.Focus, 1)
	return s
}

func (Prev) apply(s State) State {
	s.Focus = calendar.Step(s.Mode, s.Focus, -1)
	return s
}

func (a Today) apply(s State) State {
	s.Focus = a.Now
	return s
}

func (a Select) apply(s State) State {
	s.SelectedID = a.ID
	return s
}

func (ClearSelection) apply(s State) State {
	s.SelectedID = 0
	return s
}

func (ToggleSidebar) apply(s State) State {
	s.SidebarOpen = !s.SidebarOpen
	return s
}

func (a TogglePlatform) apply(s State) State {
	if i := slices.Index(s.Platforms, a.Platform); i >= 0 {
		s.Platforms = slices.Delete(slices.Clone(s.Platforms), i, i+1)
		return s
	}
	s.Platforms = append(slices.Clone(s.Platforms), a.Platform)
	return s
}

// Range is the grid span of the state's view.
func (s State) Range(weekStart time.Weekday) (time.Time, time.Time) {
	return calendar.ViewRange(s.Mode, s.Focus, weekStart)
}

// Visible returns the events shown by the grid for this state.
func (s State) Visible(events []model.CalendarEvent, weekStart time.Weekday) []model.CalendarEvent {
	start, end := s.Range(weekStart)
	return calendar.FilterByPlatform(calendar.EventsInRange(events, start, end), s.Platforms...)
}

// Selected returns the selected event, if it is among events.
func (s State) Selected(events []model.CalendarEvent) (model.CalendarEvent, bool) {
	if s.SelectedID == 0 {
		return model.CalendarEvent{}, false
	}
	for _, ev := range events {
		if ev.ID == s.SelectedID {
			return ev, true
		}
	}
	return model.CalendarEvent{}, false
}
