package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the social network a post is published to.
type Platform string

const (
	PlatformSMS       Platform = "sms"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformPinterest Platform = "pinterest"
	PlatformYouTube   Platform = "youtube"
	PlatformEmail     Platform = "email"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
)

var platforms = []Platform{
	PlatformSMS,
	PlatformWhatsApp,
	PlatformPinterest,
	PlatformYouTube,
	PlatformEmail,
	PlatformInstagram,
	PlatformLinkedIn,
	PlatformFacebook,
}

// Platforms returns every supported platform in a fixed order.
func Platforms() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// ParsePlatform accepts a platform name in any case.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Post is a scheduled post as returned by the backend. The client never
// mutates it.
type Post struct {
	ID            int64
	Platform      Platform
	Campaign      string
	Message       string
	ScheduledTime string // ISO-8601, as received
}

// CalendarEvent is the calendar-renderable projection of a Post.
//
// Start and End are always equal: posts are published at an instant.
// When the scheduled time could not be parsed, TimeInvalid is set and
// Start/End are zero.
type CalendarEvent struct {
	ID          int64
	Title       string
	Start       time.Time
	End         time.Time
	Platform    Platform
	Message     string
	Campaign    string
	TimeInvalid bool
}

// Valid reports whether the event carries a real start instant.
func (e CalendarEvent) Valid() bool {
	return !e.TimeInvalid
}

// ViewMode selects the span of the calendar grid.
type ViewMode string

const (
	ViewMonth ViewMode = "month"
	ViewWeek  ViewMode = "week"
	ViewDay   ViewMode = "day"
)

// ParseViewMode returns def for empty or unknown input.
func ParseViewMode(s string, def ViewMode) ViewMode {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewMonth:
		return ViewMonth
	case ViewWeek:
		return ViewWeek
	case ViewDay:
		return ViewDay
	default:
		return def
	}
}
