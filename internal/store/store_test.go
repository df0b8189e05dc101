package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcal/internal/api"
	"postcal/internal/model"
)

type fakeSource struct {
	mu    sync.Mutex
	posts []model.Post
	err   error
	calls int
}

func (f *fakeSource) FetchPosts(_ context.Context) (api.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return api.FetchResult{}, f.err
	}
	return api.FetchResult{Posts: f.posts, FetchedAt: time.Now()}, nil
}

func (f *fakeSource) set(posts []model.Post, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = posts
	f.err = err
}

func TestCurrentBeforeRefresh(t *testing.T) {
	s := New(&fakeSource{}, nil)
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRefreshMapsPosts(t *testing.T) {
	src := &fakeSource{posts: []model.Post{
		{ID: 1, Platform: model.PlatformSMS, Campaign: "A", ScheduledTime: "2025-01-05T10:00:00Z"},
		{ID: 2, Platform: model.PlatformSMS, Campaign: "B", ScheduledTime: "bad"},
	}}
	s := New(src, time.UTC)

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Results, 2)
	assert.Len(t, snap.Events(), 1)
	require.Len(t, snap.Errors(), 1)
	assert.Equal(t, int64(2), snap.Errors()[0].PostID)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, snap, cur)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{posts: []model.Post{
		{ID: 1, Platform: model.PlatformSMS, Campaign: "A", ScheduledTime: "2025-01-05T10:00:00Z"},
	}}
	s := New(src, time.UTC)

	first, err := s.Refresh(context.Background())
	require.NoError(t, err)

	boom := errors.New("network down")
	src.set(nil, boom)

	kept, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Same(t, first, kept)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)

	_, lastErr := s.Status()
	assert.ErrorIs(t, lastErr, boom)
}

func TestCurrentReportsFirstFailure(t *testing.T) {
	boom := errors.New("unauthorized")
	s := New(&fakeSource{err: boom}, time.UTC)

	_, err := s.Refresh(context.Background())
	require.Error(t, err)

	_, err = s.Current()
	assert.ErrorIs(t, err, boom)
}

func TestRefreshEmpty(t *testing.T) {
	s := New(&fakeSource{posts: []model.Post{}}, time.UTC)

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Events())
	assert.Empty(t, snap.Errors())
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&fakeSource{}, time.UTC)
	assert.Error(t, s.Start(context.Background(), "every minute", time.Second))
	s.Stop()
}

func TestStartAndStop(t *testing.T) {
	s := New(&fakeSource{}, time.UTC)
	require.NoError(t, s.Start(context.Background(), "@every 1h", time.Second))
	s.Stop()
	s.Stop()
}

func TestNilSnapshotHelpers(t *testing.T) {
	var snap *Snapshot
	assert.Empty(t, snap.Events())
	assert.Nil(t, snap.Errors())
}
