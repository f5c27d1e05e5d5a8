package mirror

import (
	"fmt"
	"net/url"
	"path/filepath"

	"pagemirror/internal/crawler"
	"pagemirror/internal/models"
)

const (
	IndexFile    = "index.html"
	MetadataFile = "metadata.json"
)

// NewTarget builds the mirror target for rawURL. All artifacts for a host live
// under baseDir/<host>, where host keeps any explicit port.
func NewTarget(rawURL, baseDir string) (models.MirrorTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.MirrorTarget{}, fmt.Errorf("%w: %v", crawler.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return models.MirrorTarget{}, fmt.Errorf("%w: %q needs a scheme and host", crawler.ErrInvalidURL, rawURL)
	}
	if !filepath.IsLocal(u.Host) {
		return models.MirrorTarget{}, fmt.Errorf("%w: host %q is not a usable directory name", crawler.ErrInvalidURL, u.Host)
	}
	return models.MirrorTarget{
		SourceURL: rawURL,
		Host:      u.Host,
		Root:      filepath.Join(baseDir, u.Host),
	}, nil
}

func IndexPath(t models.MirrorTarget) string {
	return filepath.Join(t.Root, IndexFile)
}

func MetadataPath(t models.MirrorTarget) string {
	return filepath.Join(t.Root, MetadataFile)
}
