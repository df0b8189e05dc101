// Package locales holds the translated words used in agenda labels.
package locales

import (
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	appLog "postcal/internal/log"
)

// Message IDs.
const (
	MsgToday       = "Today"
	MsgYesterday   = "Yesterday"
	MsgInvalidDate = "InvalidDate"
	MsgNoPosts     = "NoUpcomingPosts"
)

var english = []*i18n.Message{
	{ID: MsgToday, Other: "Today"},
	{ID: MsgYesterday, Other: "Yesterday"},
	{ID: MsgInvalidDate, Other: "Invalid Date"},
	{ID: MsgNoPosts, Other: "No upcoming posts"},
}

var korean = []*i18n.Message{
	{ID: MsgToday, Other: "오늘"},
	{ID: MsgYesterday, Other: "어제"},
	{ID: MsgInvalidDate, Other: "잘못된 날짜"},
	{ID: MsgNoPosts, Other: "예정된 게시물이 없습니다"},
}

var (
	bundle     *i18n.Bundle
	bundleOnce sync.Once
)

func defaultBundle() *i18n.Bundle {
	bundleOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		_ = bundle.AddMessages(language.English, english...)
		_ = bundle.AddMessages(language.Korean, korean...)
	})
	return bundle
}

// Localizer translates message IDs for one language.
type Localizer struct {
	tag       language.Tag
	localizer *i18n.Localizer
}

// New returns a Localizer for the given BCP 47 code. Unparseable codes fall
// back to English.
func New(code string) *Localizer {
	tag, err := language.Parse(code)
	if err != nil {
		appLog.Warn("unknown locale; using English", "locale", code)
		tag = language.English
	}
	return &Localizer{
		tag:       tag,
		localizer: i18n.NewLocalizer(defaultBundle(), tag.String()),
	}
}

// Tag is the requested language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// English reports whether the requested language is English.
func (l *Localizer) English() bool {
	base, _ := l.tag.Base()
	en, _ := language.English.Base()
	return base == en
}

// T returns the translation for id, or id itself if none exists.
func (l *Localizer) T(id string) string {
	s, err := l.localizer.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil || s == "" {
		return id
	}
	return s
}
