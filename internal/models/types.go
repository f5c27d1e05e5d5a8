package models

import "time"

type MirrorTarget struct {
	SourceURL string `json:"sourceUrl"`
	Host      string `json:"host"`
	Root      string `json:"root"`
}

type FetchedDocument struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"finalUrl,omitempty"`
	Body        []byte        `json:"-"`
	ContentType string        `json:"contentType,omitempty"`
	Elapsed     time.Duration `json:"-"`
}

type AssetKind string

const (
	AssetImage  AssetKind = "img"
	AssetLink   AssetKind = "link"
	AssetScript AssetKind = "script"
)

type AssetReference struct {
	Kind  AssetKind `json:"kind"`
	Attr  string    `json:"attr"`
	Value string    `json:"value"`
}

// PageMetadata is the on-disk record written to metadata.json.
type PageMetadata struct {
	Version    int    `json:"version"`
	Site       string `json:"site"`
	LinkCount  int    `json:"num_links"`
	ImageCount int    `json:"images"`
	LastFetch  string `json:"last_fetch"`
}

type Mode string

const (
	ModeBuild   Mode = "build"
	ModeInspect Mode = "inspect"
)

type Report struct {
	URL          string        `json:"url"`
	Mode         Mode          `json:"mode"`
	IndexPath    string        `json:"indexPath,omitempty"`
	MetadataPath string        `json:"metadataPath,omitempty"`
	AssetsSaved  int           `json:"assetsSaved,omitempty"`
	AssetsFailed int           `json:"assetsFailed,omitempty"`
	Found        bool          `json:"found,omitempty"`
	Metadata     *PageMetadata `json:"metadata,omitempty"`
	Error        string        `json:"error,omitempty"`
}
