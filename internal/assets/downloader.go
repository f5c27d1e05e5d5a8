package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pagemirror/internal/crawler"
	"pagemirror/internal/metrics"
	"pagemirror/internal/pathmap"
	"pagemirror/internal/storage"
	"pagemirror/pkg/logger"
)

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Downloader fetches assets referenced by a page and stores them under a
// mirror root.
type Downloader struct {
	fetcher crawler.Fetcher
	log     *logger.Logger
	group   singleflight.Group
}

func NewDownloader(fetcher crawler.Fetcher, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Nop()
	}
	return &Downloader{fetcher: fetcher, log: log.Named("assets")}
}

// Resolve resolves ref against base following RFC 3986.
func Resolve(ref string, base *url.URL) (*url.URL, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}
	return base.ResolveReference(r), nil
}

// Download resolves rawRef against base, fetches it and writes it under
// mirrorRoot. It returns the slash-separated path relative to mirrorRoot.
//
// On any failure it returns rawRef unchanged together with the error, so the
// caller can keep a working remote link.
//
// Concurrent calls for the same asset and root share one fetch. That fetch
// is detached from the caller's cancellation so one caller giving up cannot
// fail the others; it stays bounded by the fetcher's own timeout.
func (d *Downloader) Download(ctx context.Context, rawRef string, base *url.URL, mirrorRoot string) (string, error) {
	resolved, err := Resolve(rawRef, base)
	if err != nil {
		metrics.Assets.WithLabelValues("failed").Inc()
		return rawRef, err
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		metrics.Assets.WithLabelValues("skipped").Inc()
		return rawRef, fmt.Errorf("%s: %w", resolved.Scheme, ErrUnsupportedScheme)
	}

	key := mirrorRoot + "\x00" + resolved.String()
	v, err, shared := d.group.Do(key, func() (any, error) {
		return d.download(context.WithoutCancel(ctx), resolved, mirrorRoot)
	})
	if err != nil {
		metrics.Assets.WithLabelValues("failed").Inc()
		return rawRef, err
	}
	metrics.Assets.WithLabelValues("saved").Inc()
	d.log.Debug("asset saved",
		zap.String("url", resolved.String()),
		zap.String("path", v.(string)),
		zap.Bool("shared", shared))
	return v.(string), nil
}

func (d *Downloader) download(ctx context.Context, u *url.URL, mirrorRoot string) (string, error) {
	doc, err := d.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return "", err
	}

	rel := pathmap.MapAssetPath(u, doc.ContentType)
	dst, err := storage.Resolve(mirrorRoot, rel)
	if err != nil {
		return "", err
	}
	if err := storage.WriteFile(dst, doc.Body); err != nil {
		return "", fmt.Errorf("save asset: %w", err)
	}
	return rel, nil
}
