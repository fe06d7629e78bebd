package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

const (
	selectorRank           = "div.resource-header-rank-container.box"
	selectorTitleContainer = "div.resource-header-title-container"
	selectorTitle          = "div.resource-header-title"
	selectorSubtitle       = "div.resource-header-subtitle"
	selectorHistoryRows    = "div.resource-history-body-table table tbody tr"
)

// ParsePage extracts the raw leaderboard fields from a bot page. The header
// title container is required; without it the document is not a bot page and
// leaderboard.ErrNoData is returned.
func ParsePage(body []byte) (RawPage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return RawPage{}, fmt.Errorf("empty document: %w", leaderboard.ErrNoData)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return RawPage{}, fmt.Errorf("parse html: %w: %w", leaderboard.ErrFetchFailed, err)
	}

	titleContainer := doc.Find(selectorTitleContainer).First()
	if titleContainer.Length() == 0 {
		return RawPage{}, fmt.Errorf("missing %s: %w", selectorTitleContainer, leaderboard.ErrNoData)
	}

	page := RawPage{
		RankText: joinedText(doc.Find(selectorRank).First()),
		Title:    strings.TrimSpace(titleContainer.Find(selectorTitle).First().Text()),
		Subtitle: strings.TrimSpace(titleContainer.Find(selectorSubtitle).First().Text()),
	}

	doc.Find(selectorHistoryRows).Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		page.History = append(page.History, cells)
	})
	return page, nil
}

// joinedText mirrors a separator-joined text extraction: the text of every
// descendant text node, trimmed and joined with single spaces.
func joinedText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var parts []string
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		collectText(s, &parts)
	})
	return strings.Join(parts, " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	if goquery.NodeName(sel) == "#text" {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		collectText(child, parts)
	})
}
