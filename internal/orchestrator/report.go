package orchestrator

import (
	"fmt"

	"pagemirror/internal/models"
)

// Lines renders r as the lines printed on standard output. Failed reports
// render nothing here; their Error goes to the error stream.
func Lines(r models.Report) []string {
	if r.Error != "" {
		return nil
	}
	switch r.Mode {
	case models.ModeInspect:
		if !r.Found || r.Metadata == nil {
			return []string{fmt.Sprintf("No metadata found for %s", r.URL)}
		}
		m := r.Metadata
		return []string{
			fmt.Sprintf("site: %s", m.Site),
			fmt.Sprintf("num_links: %d", m.LinkCount),
			fmt.Sprintf("images: %d", m.ImageCount),
			fmt.Sprintf("last_fetch: %s", m.LastFetch),
			"",
		}
	default:
		return []string{
			fmt.Sprintf("Saved %s to %s", r.URL, r.IndexPath),
			fmt.Sprintf("Saved metadata to %s", r.MetadataPath),
		}
	}
}
