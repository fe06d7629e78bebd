package leaderboard

import "sort"

// GroupAndRank partitions entries by CategoryKey and orders each bucket by
// TotalScore descending, then Rank ascending. Groups appear in the order
// their key was first seen and ties keep their input order. The on-demand
// leaderboard and the published panels both go through here.
func GroupAndRank(entries []Entry) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, e := range entries {
		key := CategoryKey(e.WeightClass)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Category: key})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	for i := range groups {
		sortRanked(groups[i].Entries)
	}
	return groups
}

func sortRanked(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.Rank < b.Rank
	})
}
