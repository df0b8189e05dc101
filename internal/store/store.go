// Package store keeps the latest mapped snapshot of the account's posts
// and refreshes it on a cron schedule.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"postcal/internal/api"
	"postcal/internal/calendar"
	appLog "postcal/internal/log"
	"postcal/internal/model"
)

// PostSource yields the account's scheduled posts. *api.Client implements it.
type PostSource interface {
	FetchPosts(ctx context.Context) (api.FetchResult, error)
}

// Snapshot is one complete fetch -> map pass. It is replaced wholesale,
// never edited in place.
type Snapshot struct {
	Results   []calendar.MapResult
	FetchedAt time.Time
	FromCache bool
}

// Events returns the events that mapped cleanly.
func (s *Snapshot) Events() []model.CalendarEvent {
	if s == nil {
		return []model.CalendarEvent{}
	}
	return calendar.ValidEvents(s.Results)
}

// Errors returns the per-post mapping errors.
func (s *Snapshot) Errors() []*calendar.MappingError {
	if s == nil {
		return nil
	}
	return calendar.MappingErrors(s.Results)
}

// ErrNoSnapshot is returned by Current before the first successful refresh.
var ErrNoSnapshot = errors.New("no posts snapshot available yet")

// Store holds the current snapshot and the last refresh error.
type Store struct {
	source PostSource
	loc    *time.Location

	// refreshMu serializes refreshes; mu guards the fields below.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   *Snapshot
	lastErr   error
	lastTry   time.Time

	cron *cron.Cron
}

// New creates a Store mapping events into loc.
func New(source PostSource, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{source: source, loc: loc}
}

// Refresh fetches, decodes and maps the posts and swaps in the new
// snapshot. On failure the previous snapshot is kept and the error is
// recorded and returned.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res, err := s.source.FetchPosts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTry = time.Now()

	if err != nil {
		s.lastErr = err
		appLog.Error("posts refresh failed", err, "have_snapshot", s.current != nil)
		return s.current, err
	}

	snap := &Snapshot{
		Results:   calendar.MapEvents(res.Posts, s.loc),
		FetchedAt: res.FetchedAt,
		FromCache: res.FromCache,
	}
	s.current = snap
	s.lastErr = nil

	mapErrs := snap.Errors()
	for _, me := range mapErrs {
		appLog.Warn("post has unparseable scheduled time", "post_id", me.PostID, "value", me.Value)
	}
	appLog.Info("posts refreshed",
		"posts", len(res.Posts),
		"invalid", len(mapErrs),
		"from_cache", res.FromCache,
	)
	return snap, nil
}

// Current returns the latest snapshot. If none exists yet, the last refresh
// error (or ErrNoSnapshot) is returned.
func (s *Store) Current() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		if s.lastErr != nil {
			return nil, s.lastErr
		}
		return nil, ErrNoSnapshot
	}
	return s.current, nil
}

// Status reports the last refresh attempt and its error, if any.
func (s *Store) Status() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTry, s.lastErr
}

// Location is the display location events are mapped into.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Start schedules Refresh with a standard 5-field cron spec. Each run gets
// its own timeout derived from ctx.
func (s *Store) Start(ctx context.Context, spec string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, _ = s.Refresh(runCtx)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	appLog.Info("posts refresh scheduled", "cron", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Store) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
