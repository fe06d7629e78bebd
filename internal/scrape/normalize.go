package scrape

import (
	"math"
	"regexp"
	"strconv"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

var digitRun = regexp.MustCompile(`\d+`)

// scoreColumn is the zero-based history column holding points.
const scoreColumn = 2

// Normalize converts raw page text into leaderboard fields, applying the
// defaults for missing values.
func Normalize(page RawPage) leaderboard.Fields {
	fields := leaderboard.DefaultFields()
	if page.Title != "" {
		fields.DisplayName = page.Title
	}
	if page.Subtitle != "" {
		fields.WeightClass = page.Subtitle
	}
	fields.Rank = ParseRank(page.RankText)
	fields.TotalScore = SumScores(page.History)
	return fields
}

// ParseRank returns the first run of digits in text, or
// leaderboard.UnknownRank when there is none.
func ParseRank(text string) int {
	match := digitRun.FindString(text)
	if match == "" {
		return leaderboard.UnknownRank
	}
	rank, err := strconv.Atoi(match)
	if err != nil {
		return leaderboard.UnknownRank
	}
	return rank
}

// SumScores adds the third column of every row that parses as a number.
// Short rows and unparsable cells are skipped.
func SumScores(rows [][]string) float64 {
	total := 0.0
	for _, row := range rows {
		if len(row) <= scoreColumn {
			continue
		}
		v, err := strconv.ParseFloat(row[scoreColumn], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total += v
	}
	return total
}
