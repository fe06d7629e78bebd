package leaderboard

import "strings"

// UnknownRank is stored when a page does not expose a numeric rank.
const UnknownRank = 9999

const (
	// DefaultDisplayName is used when a page has no title.
	DefaultDisplayName = "Unknown Bot"
	// DefaultWeightClass is used when a page has no subtitle.
	DefaultWeightClass = "Unknown Weight"
)

// Entry is one combat robot being tracked.
type Entry struct {
	ID          string  `json:"id"`
	SourceURL   string  `json:"source_url"`
	DisplayName string  `json:"display_name"`
	WeightClass string  `json:"weight_class"`
	Rank        int     `json:"rank"`
	TotalScore  float64 `json:"total_score"`
}

// Fields carries the four values a scrape produces. They replace the stored
// values wholesale on every successful scrape.
type Fields struct {
	DisplayName string  `json:"display_name"`
	WeightClass string  `json:"weight_class"`
	Rank        int     `json:"rank"`
	TotalScore  float64 `json:"total_score"`
}

// DefaultFields returns the values used for anything a page leaves out.
func DefaultFields() Fields {
	return Fields{
		DisplayName: DefaultDisplayName,
		WeightClass: DefaultWeightClass,
		Rank:        UnknownRank,
		TotalScore:  0,
	}
}

// Fields extracts the mutable portion of the entry.
func (e Entry) Fields() Fields {
	return Fields{
		DisplayName: e.DisplayName,
		WeightClass: e.WeightClass,
		Rank:        e.Rank,
		TotalScore:  e.TotalScore,
	}
}

// Apply overwrites the mutable fields, leaving ID and SourceURL alone.
func (e Entry) Apply(f Fields) Entry {
	e.DisplayName = f.DisplayName
	e.WeightClass = f.WeightClass
	e.Rank = f.Rank
	e.TotalScore = f.TotalScore
	return e
}

// Group is one category bucket with its entries in ranked order.
type Group struct {
	Category string  `json:"category"`
	Entries  []Entry `json:"entries"`
}

// Panel is one channel-ready leaderboard message.
type Panel struct {
	Category string   `json:"category,omitempty"`
	Title    string   `json:"title"`
	Lines    []string `json:"lines"`
}

// Body joins the panel lines with newlines.
func (p Panel) Body() string {
	return strings.Join(p.Lines, "\n")
}
