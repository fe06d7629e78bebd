package leaderboard

import "strings"

// CategoryKey derives the grouping label from a raw weight class: the text
// after the first dash when there is one, otherwise the whole label, trimmed
// either way. No further folding is applied, so "1lb- Antweight" and
// "1lb - Antweight" share a key only because trimming makes them equal.
func CategoryKey(weightClass string) string {
	if _, after, found := strings.Cut(weightClass, "-"); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(weightClass)
}
