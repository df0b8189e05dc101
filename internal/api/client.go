package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/ratelimit"

	appLog "postcal/internal/log"
	"postcal/internal/model"
)

// maxBodyBytes caps a single posts response.
var maxBodyBytes int64 = 16 << 20

// Options configures a Client.
type Options struct {
	// URL is the posts listing endpoint.
	URL string
	// Token, if set, is sent as "Authorization: Bearer <token>".
	Token string
	// Timeout bounds a single request. Zero means 15s.
	Timeout time.Duration
	// RequestsPerSecond paces outbound requests. Zero disables pacing.
	RequestsPerSecond int
	// CacheDir holds conditional-request metadata and the last good body.
	// Empty disables the disk cache.
	CacheDir string
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// FetchResult is the outcome of one posts fetch.
type FetchResult struct {
	Posts     []model.Post
	FromCache bool // true if the body came from disk (304 or fallback)
	FetchedAt time.Time
}

// cacheEntry holds HTTP cache metadata for the posts URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Client reads the account's scheduled posts from the backend, honoring
// ETag / Last-Modified and keeping the last good body on disk.
type Client struct {
	opts    Options
	client  *http.Client
	limiter ratelimit.Limiter
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}
	return &Client{
		opts:    opts,
		client:  hc,
		limiter: limiter,
	}
}

// FetchPosts fetches and decodes the posts list.
//
// A network error or non-2xx status falls back to the cached body when one
// exists. A decode error is never masked by the cache: the backend answered,
// and what it said was malformed. Only bodies that decode are cached.
func (c *Client) FetchPosts(ctx context.Context) (FetchResult, error) {
	f, err := c.fetchBody(ctx)
	if err != nil {
		return FetchResult{}, err
	}

	posts, err := DecodePosts(f.body)
	if err != nil {
		appLog.Error("posts decode failed", err, "url", redactURL(c.opts.URL), "from_cache", f.fromCache)
		return FetchResult{}, err
	}

	if f.meta != nil {
		if err := saveCache(f.cachePath, *f.meta, f.body); err != nil {
			appLog.Error("posts cache save failed", err, "url", redactURL(c.opts.URL))
		}
	}

	return FetchResult{
		Posts:     posts,
		FromCache: f.fromCache,
		FetchedAt: time.Now(),
	}, nil
}

// fetched is a raw posts body. meta is set when the body is fresh from the
// network and should be cached once it decodes.
type fetched struct {
	body      []byte
	fromCache bool
	cachePath string
	meta      *cacheEntry
}

func (c *Client) fetchBody(ctx context.Context) (fetched, error) {
	if c.opts.URL == "" {
		return fetched{}, errors.New("posts URL is empty")
	}

	cachePath := c.cachePath()
	var meta cacheEntry
	var cachedBody []byte
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return fetched{}, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = loadCacheBody(cachePath)
	}
	cached := fetched{body: cachedBody, fromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return fetched{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	c.limiter.Take()
	appLog.Debug("posts fetch start", "url", redactURL(c.opts.URL))

	resp, err := c.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 && ctx.Err() == nil {
			appLog.Error("posts fetch network error, using cached body", err, "url", redactURL(c.opts.URL))
			return cached, nil
		}
		return fetched{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return fetched{}, err
		}
		if int64(len(body)) > maxBodyBytes {
			return fetched{}, fmt.Errorf("posts response exceeds %d bytes", maxBodyBytes)
		}
		out := fetched{body: body, cachePath: cachePath}
		if cachePath != "" {
			out.meta = &cacheEntry{
				URL:          c.opts.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
		}
		appLog.Info("posts fetch success", "url", redactURL(c.opts.URL), "status", resp.StatusCode, "bytes", len(body))
		return out, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return fetched{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("posts not modified; using cache", "url", redactURL(c.opts.URL))
		return cached, nil

	default:
		statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
		// Auth failures must surface even when stale data exists.
		if len(cachedBody) > 0 && !statusErr.Unauthorized() {
			appLog.Error("posts fetch non-OK, using cached body", statusErr, "url", redactURL(c.opts.URL))
			return cached, nil
		}
		return fetched{}, statusErr
	}
}

func (c *Client) cachePath() string {
	if c.opts.CacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.opts.URL))
	return filepath.Join(c.opts.CacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, e.g.
// https://api.example.com/api/posts?account=1 -> https://api.example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "api://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
