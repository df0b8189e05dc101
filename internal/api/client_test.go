package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePosts = `{"data":[{"id":1,"platform":"whatsapp","campaign":"Launch","message":"Hi","scheduledTime":"2025-01-05T10:00:00Z"}]}`

func TestFetchPostsSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePosts))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, Token: "tok"})
	res, err := c.FetchPosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.False(t, res.FromCache)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "Launch", res.Posts[0].Campaign)
}

func TestFetchPostsUsesETagCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(samplePosts))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, CacheDir: t.TempDir()})

	first, err := c.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := c.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Posts, second.Posts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPostsFallsBackOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(samplePosts))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, CacheDir: t.TempDir()})
	_, err := c.FetchPosts(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	res, err := c.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, res.Posts, 1)
}

func TestFetchPostsStatusErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL})
	_, err := c.FetchPosts(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchPostsUnauthorizedIsNotMasked(t *testing.T) {
	var deny atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deny.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(samplePosts))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, CacheDir: t.TempDir()})
	_, err := c.FetchPosts(context.Background())
	require.NoError(t, err)

	deny.Store(true)
	_, err = c.FetchPosts(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Unauthorized())
}

func TestFetchPostsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL})
	_, err := c.FetchPosts(context.Background())

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "platform", decErr.Field)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/...(redacted)", redactURL("https://api.example.com/api/posts?token=abc"))
	assert.Equal(t, "api://...(redacted)", redactURL("not a url"))
}

func TestFetchPostsKeepsLastGoodBodyAfterMalformed200(t *testing.T) {
	var step atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch step.Add(1) {
		case 1:
			w.Header().Set("ETag", `"good"`)
			_, _ = w.Write([]byte(samplePosts))
		case 2:
			w.Header().Set("ETag", `"broken"`)
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		default:
			if r.Header.Get("If-None-Match") != `"good"` {
				t.Errorf("conditional request carried ETag %q", r.Header.Get("If-None-Match"))
			}
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, CacheDir: t.TempDir()})

	first, err := c.FetchPosts(context.Background())
	require.NoError(t, err)

	_, err = c.FetchPosts(context.Background())
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))

	third, err := c.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, first.Posts, third.Posts)
}

func TestFetchPostsRejectsOversizedBody(t *testing.T) {
	old := maxBodyBytes
	maxBodyBytes = 32
	t.Cleanup(func() { maxBodyBytes = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePosts))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, CacheDir: t.TempDir()})
	_, err := c.FetchPosts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")
}
