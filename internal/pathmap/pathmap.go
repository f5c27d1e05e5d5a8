// Package pathmap maps a resolved asset URL to its path under a mirror root.
package pathmap

import (
	"mime"
	"net/url"
	"strings"
)

// IndexName replaces an empty URL path.
const IndexName = "index"

// extensions is consulted before the platform MIME table so the mapping does
// not depend on which mime.types files the host happens to have.
var extensions = map[string]string{
	"text/html":                 ".html",
	"application/xhtml+xml":     ".xhtml",
	"text/css":                  ".css",
	"application/javascript":    ".js",
	"text/javascript":           ".js",
	"application/x-javascript":  ".js",
	"application/json":          ".json",
	"application/manifest+json": ".webmanifest",
	"application/xml":           ".xml",
	"text/xml":                  ".xml",
	"text/plain":                ".txt",
	"application/pdf":           ".pdf",
	"image/png":                 ".png",
	"image/jpeg":                ".jpg",
	"image/gif":                 ".gif",
	"image/svg+xml":             ".svg",
	"image/webp":                ".webp",
	"image/avif":                ".avif",
	"image/x-icon":              ".ico",
	"image/vnd.microsoft.icon":  ".ico",
	"font/woff":                 ".woff",
	"font/woff2":                ".woff2",
	"font/ttf":                  ".ttf",
	"font/otf":                  ".otf",
}

// MapAssetPath returns the slash-separated path, relative to the mirror root,
// for an asset fetched from u with the given Content-Type.
//
// The URL path has its leading slashes removed ("index" if nothing is left)
// and the extension, dot included, is appended as is: "/a/b" served as
// image/png maps to "a/b.png" and "/a/b.png" maps to "a/b.png.png". Query and
// fragment are ignored, so distinct URLs can map to the same path; the later
// write wins.
func MapAssetPath(u *url.URL, contentType string) string {
	p := strings.TrimLeft(u.Path, "/")
	if p == "" {
		p = IndexName
	}
	return p + Extension(contentType)
}

// Extension returns the file extension for a Content-Type header value, or ""
// when none is known.
func Extension(contentType string) string {
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return ""
	}
	if ext, ok := extensions[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
