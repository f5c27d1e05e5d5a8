package mirror

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"pagemirror/internal/models"
	"pagemirror/internal/parser"
	"pagemirror/pkg/logger"
)

// AssetDownloader is the part of assets.Downloader the builder needs.
type AssetDownloader interface {
	Download(ctx context.Context, rawRef string, base *url.URL, mirrorRoot string) (string, error)
}

// assetAttrs lists the one attribute rewritten per element kind.
var assetAttrs = map[string]string{
	"img":    "src",
	"link":   "href",
	"script": "src",
}

type AssetOutcome struct {
	Ref       models.AssetReference
	LocalPath string
	Err       error
}

type Result struct {
	HTML   []byte
	Assets []AssetOutcome
}

func (r *Result) Counts() (saved, failed int) {
	for _, a := range r.Assets {
		if a.Err != nil {
			failed++
		} else {
			saved++
		}
	}
	return saved, failed
}

type Builder struct {
	downloader  AssetDownloader
	concurrency int64
	log         *logger.Logger
}

func NewBuilder(d AssetDownloader, concurrency int, log *logger.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{downloader: d, concurrency: int64(concurrency), log: log.Named("mirror")}
}

type pending struct {
	sel *goquery.Selection
	ref models.AssetReference
}

// collect returns the asset-bearing elements of doc in document order.
func collect(doc *goquery.Document) []pending {
	var out []pending
	doc.Find("img, link, script").Each(func(i int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		attr := assetAttrs[tag]
		val, ok := s.Attr(attr)
		if !ok {
			return
		}
		out = append(out, pending{
			sel: s,
			ref: models.AssetReference{Kind: models.AssetKind(tag), Attr: attr, Value: val},
		})
	})
	return out
}

// Build rewrites every img[src], link[href] and script[src] in doc to point at
// a local copy under target.Root. Assets that cannot be downloaded keep their
// original reference; the rewritten document is always produced.
func (b *Builder) Build(ctx context.Context, doc *models.FetchedDocument, target models.MirrorTarget) (*Result, error) {
	base, err := url.Parse(target.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	tree, err := parser.Parse(doc.Body, doc.ContentType)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	items := collect(tree)
	outcomes := make([]AssetOutcome, len(items))

	sem := semaphore.NewWeighted(b.concurrency)
	var wg sync.WaitGroup
	for i, it := range items {
		outcomes[i].Ref = it.ref
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i].LocalPath = it.ref.Value
			outcomes[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, ref models.AssetReference) {
			defer wg.Done()
			defer sem.Release(1)
			local, err := b.downloader.Download(ctx, ref.Value, base, target.Root)
			outcomes[i].LocalPath = local
			outcomes[i].Err = err
		}(i, it.ref)
	}
	wg.Wait()

	// attributes are written back on this goroutine, in document order
	for i, it := range items {
		o := &outcomes[i]
		if o.Err != nil {
			o.LocalPath = it.ref.Value
			b.log.Warn("asset download failed, keeping original reference",
				zap.String("page", target.SourceURL),
				zap.String("ref", o.Ref.Value),
				zap.Error(o.Err))
		}
		it.sel.SetAttr(it.ref.Attr, o.LocalPath)
	}

	out, err := parser.Render(tree)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return &Result{HTML: out, Assets: outcomes}, nil
}
