package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pagemirror/internal/assets"
	"pagemirror/internal/crawler"
	"pagemirror/internal/metadata"
	"pagemirror/internal/metrics"
	"pagemirror/internal/mirror"
	"pagemirror/internal/models"
	"pagemirror/internal/storage"
	"pagemirror/pkg/logger"
)

type Options struct {
	// BaseDir holds one mirror root per host.
	BaseDir          string
	PageConcurrency  int
	AssetConcurrency int
	Now              func() time.Time
}

// Orchestrator runs build or inspect for each requested URL. URLs are
// independent: a failure on one never affects another.
type Orchestrator struct {
	opts    Options
	fetcher crawler.Fetcher
	builder *mirror.Builder
	log     *logger.Logger

	// one mutex per mirror root; builds into the same root never interleave
	roots sync.Map
}

func New(opts Options, fetcher crawler.Fetcher, log *logger.Logger) *Orchestrator {
	if opts.BaseDir == "" {
		opts.BaseDir = "downloads"
	}
	if opts.PageConcurrency <= 0 {
		opts.PageConcurrency = 1
	}
	if opts.AssetConcurrency <= 0 {
		opts.AssetConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	d := assets.NewDownloader(fetcher, log)
	return &Orchestrator{
		opts:    opts,
		fetcher: fetcher,
		builder: mirror.NewBuilder(d, opts.AssetConcurrency, log),
		log:     log.Named("orchestrator"),
	}
}

// Run processes urls and returns one report per URL in input order. URLs
// with different mirror roots run concurrently; URLs sharing a root run one
// after another in input order, so the last of them owns the mirror.
func (o *Orchestrator) Run(ctx context.Context, urls []string, mode models.Mode) []models.Report {
	reports := make([]models.Report, len(urls))
	var g errgroup.Group
	g.SetLimit(o.opts.PageConcurrency)
	for _, group := range o.groupByRoot(urls) {
		g.Go(func() error {
			for _, i := range group {
				if mode == models.ModeInspect {
					reports[i] = o.Inspect(urls[i])
				} else {
					reports[i] = o.Build(ctx, urls[i])
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// groupByRoot returns the indexes of urls grouped by mirror root, each group
// in input order. URLs with no valid target form groups of their own.
func (o *Orchestrator) groupByRoot(urls []string) [][]int {
	var groups [][]int
	byRoot := make(map[string]int)
	for i, u := range urls {
		target, err := mirror.NewTarget(u, o.opts.BaseDir)
		if err != nil {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := byRoot[target.Root]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		byRoot[target.Root] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

func (o *Orchestrator) lockRoot(root string) (unlock func()) {
	v, _ := o.roots.LoadOrStore(root, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Build fetches rawURL, writes the rewritten page with its assets and saves
// the page summary. Builds into the same mirror root are serialized, so the
// index and metadata on disk always come from the same page.
func (o *Orchestrator) Build(ctx context.Context, rawURL string) models.Report {
	rep := models.Report{URL: rawURL, Mode: models.ModeBuild}

	target, err := mirror.NewTarget(rawURL, o.opts.BaseDir)
	if err != nil {
		return o.fail(rep, "invalid_url", err)
	}
	defer o.lockRoot(target.Root)()

	doc, err := o.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return o.fail(rep, "fetch_error", err)
	}

	res, err := o.builder.Build(ctx, doc, target)
	if err != nil {
		return o.fail(rep, "build_error", err)
	}
	rep.AssetsSaved, rep.AssetsFailed = res.Counts()

	indexPath := mirror.IndexPath(target)
	if err := storage.WriteFile(indexPath, res.HTML); err != nil {
		return o.fail(rep, "fs_error", fmt.Errorf("save index: %w", err))
	}
	rep.IndexPath = indexPath

	meta, err := metadata.Summarize(doc, rawURL, o.opts.Now())
	if err != nil {
		return o.fail(rep, "build_error", err)
	}
	metaPath := mirror.MetadataPath(target)
	if err := metadata.Save(meta, metaPath); err != nil {
		return o.fail(rep, "fs_error", err)
	}
	rep.MetadataPath = metaPath
	rep.Metadata = &meta

	metrics.Pages.WithLabelValues(string(models.ModeBuild), "ok").Inc()
	o.log.Info("page mirrored",
		zap.String("url", rawURL),
		zap.String("root", target.Root),
		zap.Int("assets_saved", rep.AssetsSaved),
		zap.Int("assets_failed", rep.AssetsFailed))
	return rep
}

// Inspect reports the saved summary for rawURL without any network access.
func (o *Orchestrator) Inspect(rawURL string) models.Report {
	rep := models.Report{URL: rawURL, Mode: models.ModeInspect}

	target, err := mirror.NewTarget(rawURL, o.opts.BaseDir)
	if err != nil {
		return o.fail(rep, "invalid_url", err)
	}
	meta, found, err := metadata.Load(mirror.MetadataPath(target))
	if err != nil {
		return o.fail(rep, "fs_error", err)
	}
	if !found {
		metrics.Pages.WithLabelValues(string(models.ModeInspect), "absent").Inc()
		return rep
	}
	rep.Found = true
	rep.Metadata = &meta
	metrics.Pages.WithLabelValues(string(models.ModeInspect), "ok").Inc()
	return rep
}

func (o *Orchestrator) fail(rep models.Report, outcome string, err error) models.Report {
	metrics.Pages.WithLabelValues(string(rep.Mode), outcome).Inc()
	var fe *crawler.FetchError
	if errors.As(err, &fe) {
		rep.Error = fmt.Sprintf("Error fetching %s: %s", rep.URL, fe.Reason())
	} else {
		rep.Error = fmt.Sprintf("Error processing %s: %v", rep.URL, err)
	}
	o.log.Warn("page failed", zap.String("url", rep.URL), zap.String("outcome", outcome), zap.Error(err))
	return rep
}
