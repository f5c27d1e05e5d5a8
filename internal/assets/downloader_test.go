package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagemirror/internal/crawler"
	"pagemirror/internal/models"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolve(t *testing.T) {
	base := mustURL(t, "https://x.test/p/")
	cases := map[string]string{
		"img/a.png":         "https://x.test/p/img/a.png",
		"//cdn.test/a.js":   "https://cdn.test/a.js",
		"/root.css":         "https://x.test/root.css",
		"../up.gif":         "https://x.test/up.gif",
		"#frag":             "https://x.test/p/#frag",
		"?q=1":              "https://x.test/p/?q=1",
		"http://other.test": "http://other.test",
		" spaced.png ":      "https://x.test/p/spaced.png",
	}
	for ref, want := range cases {
		got, err := Resolve(ref, base)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got.String(), ref)
	}

	httpBase := mustURL(t, "http://x.test/index.html")
	got, err := Resolve("//cdn.test/a.js", httpBase)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/a.js", got.String())
}

func TestDownloadSavesAsset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p/img/a":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNGDATA"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	root := t.TempDir()
	d := NewDownloader(crawler.NewHTTPClient(crawler.Options{Timeout: 5 * time.Second}), nil)

	got, err := d.Download(context.Background(), "img/a", mustURL(t, ts.URL+"/p/"), root)
	require.NoError(t, err)
	require.Equal(t, "p/img/a.png", got)

	data, err := os.ReadFile(filepath.Join(root, "p", "img", "a.png"))
	require.NoError(t, err)
	require.Equal(t, "PNGDATA", string(data))
}

func TestDownloadFailureReturnsOriginal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	root := t.TempDir()
	d := NewDownloader(crawler.NewHTTPClient(crawler.Options{Timeout: 5 * time.Second}), nil)

	got, err := d.Download(context.Background(), "img/missing.png", mustURL(t, ts.URL+"/"), root)
	require.Error(t, err)
	var fe *crawler.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "img/missing.png", got)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries, "nothing should be written on failure")
}

func TestDownloadSkipsNonHTTPSchemes(t *testing.T) {
	var calls int32
	f := crawler.FetcherFunc(func(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
		atomic.AddInt32(&calls, 1)
		return &models.FetchedDocument{}, nil
	})
	d := NewDownloader(f, nil)
	base := mustURL(t, "https://x.test/")

	for _, ref := range []string{"data:image/png;base64,AAAA", "javascript:void(0)", "mailto:a@x.test"} {
		got, err := d.Download(context.Background(), ref, base, t.TempDir())
		require.ErrorIs(t, err, ErrUnsupportedScheme, ref)
		require.Equal(t, ref, got)
	}
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestDownloadRejectsPathEscape(t *testing.T) {
	f := crawler.FetcherFunc(func(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
		return &models.FetchedDocument{Body: []byte("x"), ContentType: "text/plain"}, nil
	})
	d := NewDownloader(f, nil)
	root := t.TempDir()

	got, err := d.Download(context.Background(), "/%2e%2e/%2e%2e/escape", mustURL(t, "https://x.test/"), root)
	require.Error(t, err)
	require.Equal(t, "/%2e%2e/%2e%2e/escape", got)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestDownloadIsIdempotent(t *testing.T) {
	body := []byte("v1")
	var mu sync.Mutex
	f := crawler.FetcherFunc(func(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
		mu.Lock()
		defer mu.Unlock()
		return &models.FetchedDocument{Body: append([]byte(nil), body...), ContentType: "text/css"}, nil
	})
	d := NewDownloader(f, nil)
	root := t.TempDir()
	base := mustURL(t, "https://x.test/")

	first, err := d.Download(context.Background(), "style", base, root)
	require.NoError(t, err)

	mu.Lock()
	body = []byte("v2")
	mu.Unlock()

	second, err := d.Download(context.Background(), "style", base, root)
	require.NoError(t, err)
	require.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(root, "style.css"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(data), "rerun overwrites the asset")
}

// A page that gives up must not fail the same asset for another page that is
// waiting on the shared fetch.
func TestDownloadSharedFetchIgnoresCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	f := crawler.FetcherFunc(func(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &models.FetchedDocument{Body: []byte("shared"), ContentType: "text/css"}, nil
	})
	d := NewDownloader(f, nil)
	root := t.TempDir()
	base := mustURL(t, "https://x.test/")

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		path string
		err  error
	}
	first := make(chan result, 1)
	go func() {
		p, err := d.Download(ctx, "site", base, root)
		first <- result{p, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		p, err := d.Download(context.Background(), "site", base, root)
		second <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	for _, ch := range []chan result{first, second} {
		r := <-ch
		require.NoError(t, r.err)
		require.Equal(t, "site.css", r.path)
	}
	data, err := os.ReadFile(filepath.Join(root, "site.css"))
	require.NoError(t, err)
	require.Equal(t, "shared", string(data))
}

func TestDownloadWriteFailure(t *testing.T) {
	f := crawler.FetcherFunc(func(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
		return &models.FetchedDocument{Body: []byte("x"), ContentType: "image/gif"}, nil
	})
	d := NewDownloader(f, nil)

	// a regular file where the mirror root directory should be
	root := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(root, []byte("file"), 0o644))

	got, err := d.Download(context.Background(), "a/b", mustURL(t, "https://x.test/"), root)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnsupportedScheme))
	require.Equal(t, "a/b", got)
}
