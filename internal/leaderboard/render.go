package leaderboard

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// PanelTitlePrefix starts every published panel title.
	PanelTitlePrefix = "Combat Robot Leaderboard - "
	// EmptyMessage is shown when nothing is tracked.
	EmptyMessage = "No bots tracked yet."
)

// Render turns ranked groups into one panel per group. With no groups it
// returns a single placeholder panel so the channel is never left blank.
func Render(groups []Group) []Panel {
	if len(groups) == 0 {
		return []Panel{{Title: EmptyMessage}}
	}
	panels := make([]Panel, 0, len(groups))
	for _, g := range groups {
		panels = append(panels, Panel{
			Category: g.Category,
			Title:    PanelTitlePrefix + g.Category,
			Lines:    renderLines(g.Entries),
		})
	}
	return panels
}

// RenderText produces the plain-text leaderboard used for command replies.
func RenderText(groups []Group) string {
	if len(groups) == 0 {
		return EmptyMessage
	}
	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "**Leaderboard - %s:**\n", g.Category)
		for _, line := range renderLines(g.Entries) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderLines(entries []Entry) []string {
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s (Rank %d, %s pts, %s)",
			i+1, e.DisplayName, e.Rank, FormatScore(e.TotalScore), e.WeightClass))
	}
	return lines
}

// FormatScore prints the shortest round-tripping form with at least one
// decimal place, e.g. 3.75 and 12.0.
func FormatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
