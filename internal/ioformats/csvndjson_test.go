package ioformats

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagemirror/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadURLsCSV(t *testing.T) {
	p := writeTemp(t, "in.csv", "id,URL\n1,https://a.test\n2, \n3,https://b.test/x\n")
	urls, err := ReadURLs(p)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.test", "https://b.test/x"}, urls)

	_, err = ReadURLs(writeTemp(t, "bad.csv", "id,link\n1,https://a.test\n"))
	require.Error(t, err)
}

func TestReadURLsNDJSONAndText(t *testing.T) {
	p := writeTemp(t, "in.ndjson", "{\"url\":\"https://a.test\"}\n\nhttps://b.test\n# comment\n")
	urls, err := ReadURLs(p)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, urls)

	urls, err = ReadURLs(writeTemp(t, "list", "https://c.test\nhttps://d.test\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"https://c.test", "https://d.test"}, urls)

	_, err = ReadURLs(writeTemp(t, "empty.txt", "\n# nothing\n"))
	require.Error(t, err)
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	reps := []models.Report{
		{URL: "https://a.test", Mode: models.ModeInspect},
		{URL: "https://b.test", Mode: models.ModeBuild, Error: "boom"},
	}
	require.NoError(t, WriteNDJSON(&buf, reps))
	require.Equal(t,
		"{\"url\":\"https://a.test\",\"mode\":\"inspect\"}\n{\"url\":\"https://b.test\",\"mode\":\"build\",\"error\":\"boom\"}\n",
		buf.String())
}
