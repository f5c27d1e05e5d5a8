package parser

import (
	"bytes"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Parse decodes body to UTF-8 using the Content-Type and any <meta charset>
// hint, then builds a goquery document. Malformed markup is repaired by the
// HTML5 parser rather than rejected.
func Parse(body []byte, contentType string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(ToUTF8(body, contentType)))
}

// ToUTF8 returns body transcoded to UTF-8. If decoding fails the raw bytes are
// returned unchanged.
func ToUTF8(body []byte, contentType string) []byte {
	enc, _, certain := charset.DetermineEncoding(body, contentType)
	// the sniffer only looks at the first 1KB; trust a fully valid UTF-8 body
	// over a guessed legacy encoding
	if !certain && utf8.Valid(body) {
		return body
	}
	utf8data, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return utf8data
}

// Render serializes the whole document tree, doctype included.
func Render(doc *goquery.Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, n := range doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
