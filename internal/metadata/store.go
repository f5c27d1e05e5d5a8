// Package metadata summarizes a fetched page and keeps the summary on disk so
// that inspection needs no network access.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"pagemirror/internal/models"
	"pagemirror/internal/parser"
	"pagemirror/internal/storage"
)

// Version is written into every new record. Records without a version field
// load with Version 0.
const Version = 1

// TimeLayout renders e.g. "Wed Jun 12 2024 14:05 UTC".
const TimeLayout = "Mon Jan 02 2006 15:04 UTC"

// Summarize counts every <a> and <img> element in doc, whatever attributes
// they carry, and stamps the record with at in UTC.
func Summarize(doc *models.FetchedDocument, sourceURL string, at time.Time) (models.PageMetadata, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return models.PageMetadata{}, fmt.Errorf("parse source url: %w", err)
	}
	tree, err := parser.Parse(doc.Body, doc.ContentType)
	if err != nil {
		return models.PageMetadata{}, fmt.Errorf("parse document: %w", err)
	}
	return models.PageMetadata{
		Version:    Version,
		Site:       u.Host,
		LinkCount:  tree.Find("a").Length(),
		ImageCount: tree.Find("img").Length(),
		LastFetch:  at.UTC().Format(TimeLayout),
	}, nil
}

// Save replaces the record at path.
func Save(meta models.PageMetadata, path string) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := storage.WriteFile(path, data); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Load reads the record at path. A missing file is reported as found=false
// with a nil error. Unknown fields are ignored.
func Load(path string) (meta models.PageMetadata, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.PageMetadata{}, false, nil
	}
	if err != nil {
		return models.PageMetadata{}, false, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.PageMetadata{}, false, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return meta, true, nil
}
