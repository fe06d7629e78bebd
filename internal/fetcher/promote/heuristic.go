// Package promote retries plain HTTP fetches with a headless browser when the
// returned document looks script-rendered.
package promote

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/robot-leaderboard/internal/scrape"
)

// DefaultBodyLengthThreshold is the body size below which a script-heavy
// document is treated as an unrendered shell.
const DefaultBodyLengthThreshold = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// RequiredMarker is a byte sequence every rendered bot page contains.
	// A successful response without it is promoted. Empty disables the rule.
	RequiredMarker []byte
}

// NewHeuristic creates a detector tuned for bot pages.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = DefaultBodyLengthThreshold
	}
	return &Heuristic{
		BodyLengthThreshold: threshold,
		RequiredMarker:      []byte("resource-header-title-container"),
	}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp scrape.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || resp.UsedHeadless {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if len(h.RequiredMarker) > 0 && bytes.Contains(body, h.RequiredMarker) {
		return false
	}
	if len(h.RequiredMarker) > 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the document.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		end := total
		if relEnd := strings.Index(lower[contentStart:], closeTag); relEnd != -1 {
			end = contentStart + relEnd + len(closeTag)
		}
		covered += end - start
		pos = end
	}
	return covered*100/total >= 25
}
